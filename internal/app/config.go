package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string
	LogLevel   string

	// DBDSN selects SQLite session storage. Empty keeps sessions in memory.
	DBDSN string

	// ProvidersFile is a YAML provider list. Empty uses the built-in defaults.
	ProvidersFile string

	ProviderTimeoutSecs int
	CallTimeoutSecs     int

	CORSOrigins []string // empty = ["*"]

	OTelEnabled  bool
	OTelEndpoint string

	IdempotencyTTLSecs int
}

// LoadConfig reads SKILLHUB_* variables, after loading .env from the working
// directory when one exists. Real environment variables win over .env.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		ListenAddr:    getEnv("SKILLHUB_LISTEN_ADDR", ":3000"),
		LogLevel:      getEnv("SKILLHUB_LOG_LEVEL", "info"),
		DBDSN:         getEnv("SKILLHUB_DB_DSN", ""),
		ProvidersFile: getEnv("SKILLHUB_PROVIDERS_FILE", ""),

		ProviderTimeoutSecs: getEnvInt("SKILLHUB_PROVIDER_TIMEOUT_SECS", 30),
		CallTimeoutSecs:     getEnvInt("SKILLHUB_CALL_TIMEOUT_SECS", 120),

		CORSOrigins: getEnvStringSlice("SKILLHUB_CORS_ORIGINS", nil),

		OTelEnabled:  getEnvBool("SKILLHUB_OTEL_ENABLED", false),
		OTelEndpoint: getEnv("SKILLHUB_OTEL_ENDPOINT", "localhost:4318"),

		IdempotencyTTLSecs: getEnvInt("SKILLHUB_IDEMPOTENCY_TTL_SECS", 300),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("SKILLHUB_LISTEN_ADDR must not be empty")
	}
	if c.ProviderTimeoutSecs <= 0 {
		return fmt.Errorf("SKILLHUB_PROVIDER_TIMEOUT_SECS must be > 0, got %d", c.ProviderTimeoutSecs)
	}
	if c.CallTimeoutSecs <= 0 {
		return fmt.Errorf("SKILLHUB_CALL_TIMEOUT_SECS must be > 0, got %d", c.CallTimeoutSecs)
	}
	if c.IdempotencyTTLSecs <= 0 {
		return fmt.Errorf("SKILLHUB_IDEMPOTENCY_TTL_SECS must be > 0, got %d", c.IdempotencyTTLSecs)
	}
	if c.OTelEnabled && c.OTelEndpoint == "" {
		return errors.New("SKILLHUB_OTEL_ENDPOINT is required when tracing is enabled")
	}
	return nil
}

func (c Config) providerTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSecs) * time.Second
}

func (c Config) callTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSecs) * time.Second
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvStringSlice(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/enterprise-skillhub/skillhub/internal/events"
	"github.com/enterprise-skillhub/skillhub/internal/health"
	"github.com/enterprise-skillhub/skillhub/internal/httpapi"
	"github.com/enterprise-skillhub/skillhub/internal/idempotency"
	"github.com/enterprise-skillhub/skillhub/internal/logging"
	"github.com/enterprise-skillhub/skillhub/internal/metrics"
	"github.com/enterprise-skillhub/skillhub/internal/providers"
	"github.com/enterprise-skillhub/skillhub/internal/router"
	"github.com/enterprise-skillhub/skillhub/internal/session"
	"github.com/enterprise-skillhub/skillhub/internal/stats"
	"github.com/enterprise-skillhub/skillhub/internal/tracing"
	"github.com/enterprise-skillhub/skillhub/internal/usage"
)

const idempotencyMaxEntries = 10000

type Server struct {
	cfg Config

	r *chi.Mux

	engine   *router.Engine
	sessions session.Store
	cache    *idempotency.Cache
	logger   *slog.Logger

	shutdownTracing func(context.Context) error
}

func NewServer(ctx context.Context, cfg Config, version string) (*Server, error) {
	logger := logging.Setup(cfg.LogLevel)

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:        cfg.OTelEnabled,
		Endpoint:       cfg.OTelEndpoint,
		ServiceName:    "skillhub",
		ServiceVersion: version,
	})
	if err != nil {
		return nil, err
	}

	cfgs, err := LoadProviders(cfg.ProvidersFile)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	sessions, err := openSessions(ctx, cfg.DBDSN, logger)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	m := metrics.New()
	bus := events.NewBus()
	collector := stats.NewCollector()
	ht := health.NewTracker(health.DefaultConfig(),
		health.WithEventBus(bus),
		health.WithOnUpdate(httpapi.HealthGauge(m)),
	)

	opts := []router.Option{
		router.WithUsageTracker(usage.NewTracker()),
		router.WithObserver(&httpapi.Observer{Metrics: m, EventBus: bus, Stats: collector, Health: ht}),
	}
	for _, c := range providers.All(
		providers.WithTimeout(cfg.providerTimeout()),
		providers.WithTransport(tracing.HTTPTransport(nil)),
	) {
		opts = append(opts, router.WithClient(c))
	}
	eng := router.NewEngine(router.EngineConfig{
		Providers:      cfgs,
		AttemptTimeout: cfg.providerTimeout(),
	}, opts...)

	for _, p := range eng.AvailableProviders() {
		logger.Info("provider enabled",
			slog.String("provider", string(p.Provider)),
			slog.String("model", p.Model),
			slog.Int("priority", p.Priority),
		)
	}
	if len(eng.AvailableProviders()) == 0 {
		logger.Warn("no providers enabled; llm calls will fail")
	}

	cache := idempotency.New(time.Duration(cfg.IdempotencyTTLSecs)*time.Second, idempotencyMaxEntries)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(tracing.Middleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", idempotency.HeaderKey},
		ExposedHeaders:   []string{idempotency.HeaderReplay},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	httpapi.MountRoutes(r, httpapi.Dependencies{
		Engine:      eng,
		Sessions:    sessions,
		Metrics:     m,
		EventBus:    bus,
		Stats:       collector,
		Health:      ht,
		Idempotency: cache,
		CallTimeout: cfg.callTimeout(),
		Version:     version,
		StartedAt:   time.Now(),
	})

	return &Server{
		cfg:             cfg,
		r:               r,
		engine:          eng,
		sessions:        sessions,
		cache:           cache,
		logger:          logger,
		shutdownTracing: shutdownTracing,
	}, nil
}

func openSessions(ctx context.Context, dsn string, logger *slog.Logger) (session.Store, error) {
	if dsn == "" {
		logger.Info("session store initialized", slog.String("backend", "memory"))
		return session.NewMemoryStore(), nil
	}
	db, err := session.NewSQLite(dsn)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate session database: %w", err)
	}
	logger.Info("session store initialized", slog.String("backend", "sqlite"))
	return db, nil
}

func (s *Server) Router() http.Handler { return s.r }

func (s *Server) Engine() *router.Engine { return s.engine }

// Close releases the session store and flushes pending spans.
func (s *Server) Close(ctx context.Context) error {
	s.cache.Stop()
	return errors.Join(s.sessions.Close(), s.shutdownTracing(ctx))
}

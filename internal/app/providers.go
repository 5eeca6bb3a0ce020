package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/enterprise-skillhub/skillhub/internal/router"
)

// providersFile is the YAML layout of SKILLHUB_PROVIDERS_FILE:
//
//	providers:
//	  - provider: anthropic
//	    model: claude-sonnet-4
//	    priority: 1
//	    base_url: http://gateway:8080
//	    api_key_env: ANTHROPIC_API_KEY
type providersFile struct {
	Providers []providerEntry `yaml:"providers"`
}

type providerEntry struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Priority  int    `yaml:"priority"`
	Enabled   *bool  `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// DefaultProviders enables every provider kind, in Kinds order, at
// priorities 1..5.
func DefaultProviders() []router.ProviderConfig {
	kinds := router.Kinds()
	out := make([]router.ProviderConfig, len(kinds))
	for i, k := range kinds {
		out[i] = router.ProviderConfig{ProviderID: k, Priority: i + 1, Enabled: true}
	}
	return out
}

// LoadProviders reads the provider list from path, or returns the defaults
// when path is empty. Entries without "enabled" are enabled. A file with no
// providers is valid; every call then fails with router.ErrNoProviders.
func LoadProviders(path string) ([]router.ProviderConfig, error) {
	if path == "" {
		return DefaultProviders(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	return parseProviders(data)
}

func parseProviders(data []byte) ([]router.ProviderConfig, error) {
	var f providersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}
	out := make([]router.ProviderConfig, 0, len(f.Providers))
	for i, e := range f.Providers {
		kind, err := router.ParseKind(e.Provider)
		if err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", i, err)
		}
		enabled := true
		if e.Enabled != nil {
			enabled = *e.Enabled
		}
		out = append(out, router.ProviderConfig{
			ProviderID: kind,
			Model:      e.Model,
			Priority:   e.Priority,
			Enabled:    enabled,
			BaseURL:    e.BaseURL,
			APIKeyEnv:  e.APIKeyEnv,
		})
	}
	return out, nil
}

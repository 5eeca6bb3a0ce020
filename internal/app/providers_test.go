package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enterprise-skillhub/skillhub/internal/router"
)

func TestDefaultProviders(t *testing.T) {
	cfgs := DefaultProviders()
	require.Len(t, cfgs, 5)
	for i, c := range cfgs {
		assert.Equal(t, router.Kinds()[i], c.ProviderID)
		assert.Equal(t, i+1, c.Priority)
		assert.True(t, c.Enabled)
		assert.Empty(t, c.BaseURL)
	}
}

func TestLoadProvidersEmptyPathUsesDefaults(t *testing.T) {
	cfgs, err := LoadProviders("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProviders(), cfgs)
}

func TestLoadProvidersFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  - provider: openai
    model: gpt-4o-mini
    priority: 2
    base_url: http://relay:8080
    api_key_env: OPENAI_API_KEY
  - provider: ollama
    priority: 1
    enabled: false
`), 0o600))

	cfgs, err := LoadProviders(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)

	assert.Equal(t, router.ProviderConfig{
		ProviderID: router.KindOpenAI,
		Model:      "gpt-4o-mini",
		Priority:   2,
		Enabled:    true,
		BaseURL:    "http://relay:8080",
		APIKeyEnv:  "OPENAI_API_KEY",
	}, cfgs[0])
	assert.Equal(t, router.KindOllama, cfgs[1].ProviderID)
	assert.False(t, cfgs[1].Enabled)
}

func TestLoadProvidersErrors(t *testing.T) {
	_, err := LoadProviders(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	cases := map[string]string{
		"unknown kind": "providers:\n  - provider: acme\n    priority: 1\n",
		"bad yaml":     "providers: [\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseProviders([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseProvidersAcceptsEmptyList(t *testing.T) {
	for _, doc := range []string{"providers: []\n", "{}\n"} {
		cfgs, err := parseProviders([]byte(doc))
		require.NoError(t, err, doc)
		assert.Empty(t, cfgs)
	}
}

package router

import "fmt"

// ProviderKind identifies one of the supported model backends.
type ProviderKind string

const (
	KindAnthropic  ProviderKind = "anthropic"
	KindOpenAI     ProviderKind = "openai"
	KindGoogle     ProviderKind = "google"
	KindOllama     ProviderKind = "ollama"
	KindOpenRouter ProviderKind = "openrouter"
)

// Kinds lists every supported provider kind in declaration order.
func Kinds() []ProviderKind {
	return []ProviderKind{KindAnthropic, KindOpenAI, KindGoogle, KindOllama, KindOpenRouter}
}

// ParseKind validates a provider kind name.
func ParseKind(s string) (ProviderKind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown provider kind %q", s)
}

// ProviderConfig describes one configured provider. Connection parameters are
// opaque to the router and only interpreted by the Client for that kind.
type ProviderConfig struct {
	ProviderID ProviderKind `json:"provider" yaml:"provider"`
	Model      string       `json:"model" yaml:"model"`
	Priority   int          `json:"priority" yaml:"priority"`
	Enabled    bool         `json:"enabled" yaml:"enabled"`

	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
}

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Usage holds token counts reported by a provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CallResult is the outcome of a successful call. Usage is nil when the
// provider did not report token counts.
type CallResult struct {
	Content       string       `json:"content"`
	Model         string       `json:"model"`
	ProviderID    ProviderKind `json:"provider"`
	Usage         *Usage       `json:"usage,omitempty"`
	LatencyMillis int64        `json:"latency_ms"`
}

// CallOptions carries optional per-call overrides.
type CallOptions struct {
	// Model overrides the candidate's configured model.
	Model string
	// Provider is a caller hint. It is logged and traced but does not change
	// dispatch order.
	Provider ProviderKind
	// MaxRetries bounds the number of attempts. Zero or negative means one
	// attempt per candidate.
	MaxRetries int
}

// ProviderInfo is the public view of a candidate.
type ProviderInfo struct {
	Provider ProviderKind `json:"provider"`
	Model    string       `json:"model"`
	Priority int          `json:"priority"`
}

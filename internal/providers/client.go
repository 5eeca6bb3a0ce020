// Package providers implements router.Client for every supported provider kind.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/enterprise-skillhub/skillhub/internal/router"
)

// RelayPath is appended to a provider's base_url when relaying a call.
const RelayPath = "/v1/relay"

// Profile describes the fixed traits of one provider kind.
type Profile struct {
	Kind         router.ProviderKind
	DisplayName  string
	DefaultModel string

	// rateLimitStatuses are treated as rate limiting in addition to 429.
	rateLimitStatuses []int
	// overflowMarkers in an error body mean the prompt did not fit.
	overflowMarkers []string
}

var profiles = map[router.ProviderKind]Profile{
	router.KindAnthropic: {
		Kind:              router.KindAnthropic,
		DisplayName:       "Anthropic",
		DefaultModel:      "claude-sonnet-4",
		rateLimitStatuses: []int{529},
		overflowMarkers:   []string{"prompt is too long", "prompt_too_long"},
	},
	router.KindOpenAI: {
		Kind:            router.KindOpenAI,
		DisplayName:     "OpenAI",
		DefaultModel:    "gpt-4o",
		overflowMarkers: []string{"context_length_exceeded"},
	},
	router.KindGoogle: {
		Kind:            router.KindGoogle,
		DisplayName:     "Google",
		DefaultModel:    "gemini-2.0-flash",
		overflowMarkers: []string{"exceeds the maximum number of tokens"},
	},
	router.KindOllama: {
		Kind:            router.KindOllama,
		DisplayName:     "Ollama",
		DefaultModel:    "llama-3.1",
		overflowMarkers: []string{"context length"},
	},
	router.KindOpenRouter: {
		Kind:            router.KindOpenRouter,
		DisplayName:     "OpenRouter",
		DefaultModel:    "auto",
		overflowMarkers: []string{"context_length_exceeded", "maximum context length"},
	},
}

// ProfileFor returns the profile of a kind.
func ProfileFor(kind router.ProviderKind) (Profile, bool) {
	p, ok := profiles[kind]
	return p, ok
}

var _ router.Client = (*Client)(nil)

// Client serves one provider kind. Without a base_url in the provider config
// it answers locally with a placeholder reply; with one it relays the call.
type Client struct {
	profile Profile
	client  *http.Client
	getenv  func(string) string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithTransport sets the HTTP transport, e.g. a tracing round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.client.Transport = rt
	}
}

// WithEnv replaces the environment lookup used to resolve api_key_env.
func WithEnv(getenv func(string) string) Option {
	return func(c *Client) {
		c.getenv = getenv
	}
}

// New creates the client for a kind. A zero timeout defaults to 30s.
func New(kind router.ProviderKind, opts ...Option) (*Client, error) {
	p, ok := profiles[kind]
	if !ok {
		return nil, fmt.Errorf("no client for provider kind %q", kind)
	}
	c := &Client{
		profile: p,
		client:  &http.Client{Timeout: 30 * time.Second},
		getenv:  os.Getenv,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// All creates one client per supported kind.
func All(opts ...Option) []*Client {
	out := make([]*Client, 0, len(profiles))
	for _, k := range router.Kinds() {
		c, _ := New(k, opts...)
		out = append(out, c)
	}
	return out
}

func (c *Client) Kind() router.ProviderKind { return c.profile.Kind }

func (c *Client) DefaultModel() string { return c.profile.DefaultModel }

// relayRequest is the provider-agnostic envelope POSTed to a relay.
type relayRequest struct {
	Provider router.ProviderKind `json:"provider"`
	Model    string              `json:"model"`
	Messages []router.Message    `json:"messages"`
}

type relayResponse struct {
	Content string        `json:"content"`
	Model   string        `json:"model"`
	Usage   *router.Usage `json:"usage,omitempty"`
}

// Invoke implements router.Client.
func (c *Client) Invoke(ctx context.Context, cfg router.ProviderConfig, messages []router.Message, model string) (router.CallResult, error) {
	if err := ctx.Err(); err != nil {
		return router.CallResult{}, err
	}
	if cfg.BaseURL == "" {
		return router.CallResult{
			Content: fmt.Sprintf("[%s response placeholder]", c.profile.DisplayName),
			Model:   model,
			Usage:   &router.Usage{},
		}, nil
	}

	body, err := DoRequest(ctx, c.client, strings.TrimRight(cfg.BaseURL, "/")+RelayPath, relayRequest{
		Provider: c.profile.Kind,
		Model:    model,
		Messages: messages,
	}, c.authHeaders(cfg))
	if err != nil {
		return router.CallResult{}, c.ClassifyError(err)
	}

	var resp relayResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return router.CallResult{}, &router.ClassifiedError{
			Err:   fmt.Errorf("decode relay response: %w", err),
			Class: router.ErrFatal,
		}
	}
	if resp.Model == "" {
		resp.Model = model
	}
	return router.CallResult{Content: resp.Content, Model: resp.Model, Usage: resp.Usage}, nil
}

// ClassifyError labels a relay error for the router.
func (c *Client) ClassifyError(err error) *router.ClassifiedError {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests || c.isRateLimitStatus(se.StatusCode):
			return &router.ClassifiedError{Err: err, Class: router.ErrRateLimited, RetryAfter: se.RetryAfterSecs}
		case se.StatusCode >= 500:
			return &router.ClassifiedError{Err: err, Class: router.ErrTransient}
		case c.isOverflow(se.Body):
			return &router.ClassifiedError{Err: err, Class: router.ErrContextOverflow}
		}
		return &router.ClassifiedError{Err: err, Class: router.ErrFatal}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &router.ClassifiedError{Err: err, Class: router.ErrTimeout}
	}
	return &router.ClassifiedError{Err: err, Class: router.ErrTransient}
}

func (c *Client) authHeaders(cfg router.ProviderConfig) map[string]string {
	if cfg.APIKeyEnv == "" {
		return nil
	}
	key := c.getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + key}
}

func (c *Client) isRateLimitStatus(code int) bool {
	for _, s := range c.profile.rateLimitStatuses {
		if s == code {
			return true
		}
	}
	return false
}

func (c *Client) isOverflow(body string) bool {
	for _, m := range c.profile.overflowMarkers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}

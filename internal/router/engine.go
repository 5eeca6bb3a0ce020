package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/enterprise-skillhub/skillhub/internal/usage"
)

// Client is the capability every provider integration implements. Defined here
// to avoid an import cycle with the providers package.
type Client interface {
	// Kind is the provider kind this client serves.
	Kind() ProviderKind
	// DefaultModel is used when neither the call nor the config names a model.
	DefaultModel() string
	// Invoke sends the messages to the provider. Implementations must honour
	// ctx cancellation.
	Invoke(ctx context.Context, cfg ProviderConfig, messages []Message, model string) (CallResult, error)
}

// Attempt describes one provider invocation within a call.
type Attempt struct {
	Index         int
	ProviderID    ProviderKind
	Model         string
	LatencyMillis int64
	Tokens        int
	Err           error
	Class         ErrorClass
}

// Observer receives every attempt after it settles. Implementations must not
// block; they run on the caller's goroutine.
type Observer interface {
	ObserveAttempt(ctx context.Context, a Attempt)
}

type EngineConfig struct {
	Providers []ProviderConfig
	// AttemptTimeout bounds a single provider invocation. Zero disables it.
	AttemptTimeout time.Duration
}

// Engine dispatches calls across the configured providers with failover.
type Engine struct {
	cfg        EngineConfig
	candidates CandidateList
	clients    map[ProviderKind]Client
	usage      *usage.Tracker
	observers  []Observer
	tracer     trace.Tracer

	// now is used for testing; defaults to time.Now.
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClient registers the client for its provider kind, replacing any
// previous client for that kind.
func WithClient(c Client) Option {
	return func(e *Engine) {
		e.clients[c.Kind()] = c
	}
}

// WithUsageTracker shares an existing tracker with the engine.
func WithUsageTracker(t *usage.Tracker) Option {
	return func(e *Engine) {
		if t != nil {
			e.usage = t
		}
	}
}

// WithObserver adds an attempt observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// NewEngine builds the candidate list from cfg.Providers. The list is fixed
// for the lifetime of the engine.
func NewEngine(cfg EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg,
		candidates: BuildCandidates(cfg.Providers),
		clients:    make(map[ProviderKind]Client),
		usage:      usage.NewTracker(),
		tracer:     otel.Tracer("skillhub.router"),
		now:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// AvailableProviders lists the enabled providers in dispatch order.
func (e *Engine) AvailableProviders() []ProviderInfo {
	return e.candidates.Infos()
}

// UsageStats returns a point-in-time copy of per-provider usage.
func (e *Engine) UsageStats() map[string]usage.Snapshot {
	return e.usage.Snapshot()
}

// Call sends messages to the first candidate and fails over on error. Attempt
// k goes to candidate k mod N, so with MaxRetries > N the list wraps and a
// provider that already failed is tried again.
func (e *Engine) Call(ctx context.Context, messages []Message, opts CallOptions) (CallResult, error) {
	if len(e.candidates) == 0 {
		return CallResult{}, ErrNoProviders
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = len(e.candidates)
	}

	ctx, span := e.tracer.Start(ctx, "router.call",
		trace.WithAttributes(
			attribute.Int("router.max_retries", maxRetries),
			attribute.Int("router.candidates", len(e.candidates)),
			attribute.String("router.provider_hint", string(opts.Provider)),
			attribute.String("router.model_override", opts.Model),
		),
	)
	defer span.End()

	if opts.Provider != "" {
		slog.Debug("provider hint does not change dispatch order",
			slog.String("hint", string(opts.Provider)),
		)
	}

	var lastErr *ProviderError
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return CallResult{}, e.cancelled(span, attempt, err)
		}

		candidate := e.candidates.At(attempt)
		res, perr := e.attempt(ctx, attempt, candidate, messages, opts.Model)
		if perr == nil {
			span.SetAttributes(
				attribute.String("router.provider", string(res.ProviderID)),
				attribute.Int("router.attempts", attempt+1),
			)
			span.SetStatus(codes.Ok, "")
			return res, nil
		}
		lastErr = perr

		if err := ctx.Err(); err != nil {
			return CallResult{}, e.cancelled(span, attempt+1, err)
		}
	}

	failure := &AllProvidersFailedError{Attempts: maxRetries, Last: lastErr}
	span.RecordError(failure)
	span.SetStatus(codes.Error, "all providers failed")
	slog.Error("all providers failed",
		slog.Int("attempts", maxRetries),
		slog.String("error", failure.Error()),
	)
	return CallResult{}, failure
}

// attempt invokes one candidate. On success it records usage before returning.
func (e *Engine) attempt(ctx context.Context, idx int, candidate ProviderConfig, messages []Message, override string) (CallResult, *ProviderError) {
	client, ok := e.clients[candidate.ProviderID]
	model := resolveModel(override, candidate, client)

	slog.Info("routing request",
		slog.String("provider", string(candidate.ProviderID)),
		slog.String("model", model),
		slog.Int("attempt", idx+1),
		slog.Int("candidates", len(e.candidates)),
	)

	if !ok {
		perr := &ProviderError{
			ProviderID: candidate.ProviderID,
			Model:      model,
			Attempt:    idx,
			Class:      ErrFatal,
			Err:        fmt.Errorf("no client registered for provider %s", candidate.ProviderID),
		}
		e.fail(ctx, perr, 0)
		return CallResult{}, perr
	}

	actx := ctx
	if e.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, e.cfg.AttemptTimeout)
		defer cancel()
	}
	actx, span := e.tracer.Start(actx, "router.attempt",
		trace.WithAttributes(
			attribute.String("router.provider", string(candidate.ProviderID)),
			attribute.String("router.model", model),
			attribute.Int("router.attempt", idx),
		),
	)
	defer span.End()

	start := e.now()
	res, err := client.Invoke(actx, candidate, messages, model)
	latency := e.now().Sub(start).Milliseconds()

	if err != nil {
		perr := &ProviderError{
			ProviderID: candidate.ProviderID,
			Model:      model,
			Attempt:    idx,
			Class:      classify(err),
			Err:        err,
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(perr.Class))
		e.fail(ctx, perr, latency)
		return CallResult{}, perr
	}

	res.ProviderID = candidate.ProviderID
	if res.Model == "" {
		res.Model = model
	}
	res.LatencyMillis = latency

	tokens := 0
	if res.Usage != nil {
		tokens = res.Usage.TotalTokens
	}
	e.usage.Record(string(candidate.ProviderID), latency, tokens)
	span.SetStatus(codes.Ok, "")

	e.observe(ctx, Attempt{
		Index:         idx,
		ProviderID:    candidate.ProviderID,
		Model:         res.Model,
		LatencyMillis: latency,
		Tokens:        tokens,
	})
	return res, nil
}

func (e *Engine) fail(ctx context.Context, perr *ProviderError, latency int64) {
	slog.Warn("provider failed",
		slog.String("provider", string(perr.ProviderID)),
		slog.String("model", perr.Model),
		slog.Int("attempt", perr.Attempt+1),
		slog.String("class", string(perr.Class)),
		slog.String("error", perr.Err.Error()),
	)
	e.observe(ctx, Attempt{
		Index:         perr.Attempt,
		ProviderID:    perr.ProviderID,
		Model:         perr.Model,
		LatencyMillis: latency,
		Err:           perr,
		Class:         perr.Class,
	})
}

func (e *Engine) cancelled(span trace.Span, attempts int, err error) error {
	ce := &CancelledError{Attempts: attempts, Err: err}
	span.RecordError(ce)
	span.SetStatus(codes.Error, "cancelled")
	slog.Warn("call cancelled",
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
	return ce
}

func (e *Engine) observe(ctx context.Context, a Attempt) {
	for _, o := range e.observers {
		o.ObserveAttempt(ctx, a)
	}
}

// resolveModel picks the call override, then the configured model, then the
// client's default.
func resolveModel(override string, candidate ProviderConfig, client Client) string {
	if override != "" {
		return override
	}
	if candidate.Model != "" {
		return candidate.Model
	}
	if client != nil {
		return client.DefaultModel()
	}
	return ""
}

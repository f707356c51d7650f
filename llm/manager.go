package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/martinemde/cliengineer/events"
	"github.com/martinemde/cliengineer/logging"
)

// Handler performs one model call.
type Handler func(ctx context.Context, prompt string) (*Completion, error)

// Middleware wraps a model call. The first registered runs outermost.
type Middleware func(ctx context.Context, prompt string, next Handler) (*Completion, error)

// Emitter receives API call telemetry.
type Emitter interface {
	Emit(events.Event)
}

// Manager routes prompts to the active provider, retrying transient failures
// and accounting for tokens and cost.
type Manager struct {
	mu         sync.RWMutex
	providers  map[string]Provider
	order      []string
	active     string
	middleware []Middleware
	retry      RetryPolicy
	emitter    Emitter
	usage      *UsageTracker
	logger     *logging.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithProvider(p Provider) ManagerOption {
	return func(m *Manager) { m.register(p) }
}

// WithActive selects the provider used for calls.
func WithActive(name string) ManagerOption {
	return func(m *Manager) { m.active = name }
}

func WithMiddleware(mw ...Middleware) ManagerOption {
	return func(m *Manager) { m.middleware = append(m.middleware, mw...) }
}

func WithRetryPolicy(p RetryPolicy) ManagerOption {
	return func(m *Manager) { m.retry = p }
}

func WithEmitter(e Emitter) ManagerOption {
	return func(m *Manager) { m.emitter = e }
}

func WithUsageTracker(t *UsageTracker) ManagerOption {
	return func(m *Manager) { m.usage = t }
}

func WithLogger(l *logging.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager. Without WithActive the first registered
// provider is active.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		providers: make(map[string]Provider),
		retry:     DefaultRetryPolicy(),
		emitter:   events.Discard{},
		usage:     NewUsageTracker(),
		logger:    logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.active == "" && len(m.order) > 0 {
		m.active = m.order[0]
	}
	return m
}

func (m *Manager) register(p Provider) {
	if _, ok := m.providers[p.Name()]; !ok {
		m.order = append(m.order, p.Name())
	}
	m.providers[p.Name()] = p
}

// RegisterProvider adds or replaces a provider.
func (m *Manager) RegisterProvider(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.register(p)
	if m.active == "" {
		m.active = p.Name()
	}
}

// SetActive switches the provider used for subsequent calls.
func (m *Manager) SetActive(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[name]; !ok {
		return &ConfigurationError{SDKError: SDKError{Message: fmt.Sprintf("provider %q is not registered", name)}}
	}
	m.active = name
	return nil
}

// Providers lists registered provider names in registration order.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Active returns the provider calls are routed to.
func (m *Manager) Active() (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == "" {
		return nil, &ConfigurationError{SDKError: SDKError{Message: "no provider configured"}}
	}
	p, ok := m.providers[m.active]
	if !ok {
		return nil, &ConfigurationError{SDKError: SDKError{Message: fmt.Sprintf("provider %q is not registered", m.active)}}
	}
	return p, nil
}

// ContextSize returns the active model's window, or 0 when none is active.
func (m *Manager) ContextSize() int {
	p, err := m.Active()
	if err != nil {
		return 0
	}
	return p.ContextSize()
}

// Usage exposes the tracker for reporting.
func (m *Manager) Usage() *UsageTracker {
	return m.usage
}

// SendPrompt returns only the reply text.
func (m *Manager) SendPrompt(ctx context.Context, prompt string) (string, error) {
	c, err := m.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return c.Text, nil
}

// Complete sends prompt through middleware and retry to the active provider.
func (m *Manager) Complete(ctx context.Context, prompt string) (*Completion, error) {
	p, err := m.Active()
	if err != nil {
		return nil, err
	}

	handler := func(ctx context.Context, prompt string) (*Completion, error) {
		return p.Complete(ctx, prompt)
	}
	m.mu.RLock()
	for i := len(m.middleware) - 1; i >= 0; i-- {
		mw := m.middleware[i]
		next := handler
		handler = func(ctx context.Context, prompt string) (*Completion, error) {
			return mw(ctx, prompt, next)
		}
	}
	policy := m.retry
	m.mu.RUnlock()

	log := m.logger.With("provider", p.Name(), "model", p.Model())
	if policy.OnRetry == nil {
		policy.OnRetry = func(err error, attempt int, delay time.Duration) {
			log.Warn("retrying model call", "attempt", attempt, "delay", delay.String(), "error", err.Error())
		}
	}

	m.emitter.Emit(events.New(events.KindAPICallStarted,
		events.KeyProvider, p.Name(), events.KeyModel, p.Model()))
	start := time.Now()

	c, err := Retry(ctx, policy, func(ctx context.Context) (*Completion, error) {
		return handler(ctx, prompt)
	})
	elapsed := time.Since(start)
	if err != nil {
		log.Error("model call failed", "error", err.Error(), "duration", elapsed.String())
		m.emitter.Emit(events.New(events.KindAPICallFailed,
			events.KeyProvider, p.Name(), events.KeyModel, p.Model(), events.KeyError, err.Error()))
		return nil, err
	}
	if c.Provider == "" {
		c.Provider = p.Name()
	}
	if c.Model == "" {
		c.Model = p.Model()
	}

	usage, cost := m.usage.Record(prompt, c)
	c.Usage = usage
	log.Debug("model call completed",
		"input_tokens", usage.InputTokens, "output_tokens", usage.OutputTokens, "duration", elapsed.String())

	m.emitter.Emit(events.New(events.KindAPICallCompleted,
		events.KeyProvider, p.Name(), events.KeyModel, p.Model(), events.KeyDuration, elapsed.Milliseconds()))
	m.emitter.Emit(events.New(events.KindTokensUsed,
		events.KeyProvider, p.Name(), events.KeyModel, p.Model(),
		events.KeyInputTokens, usage.InputTokens, events.KeyOutputTokens, usage.OutputTokens,
		events.KeyCost, cost))
	return c, nil
}

// Close releases resources held by providers.
func (m *Manager) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var firstErr error
	for _, p := range m.providers {
		if closer, ok := p.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

package llm

import (
	"context"
	"fmt"

	"github.com/teilomillet/gollm"
)

// GollmProvider serves OpenAI, Anthropic, OpenRouter and Ollama models
// through gollm.
type GollmProvider struct {
	provider    string
	model       string
	contextSize int
	llm         gollm.LLM
}

// GollmOption configures a GollmProvider.
type GollmOption func(*gollmConfig)

type gollmConfig struct {
	apiKey      string
	maxTokens   int
	temperature float64
	baseURL     string
	contextSize int
	extraOpts   []gollm.ConfigOption
}

// WithAPIKey sets the key; when empty gollm reads the provider's env var.
func WithAPIKey(key string) GollmOption {
	return func(c *gollmConfig) { c.apiKey = key }
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) GollmOption {
	return func(c *gollmConfig) { c.maxTokens = n }
}

func WithTemperature(t float64) GollmOption {
	return func(c *gollmConfig) { c.temperature = t }
}

// WithBaseURL points an Ollama provider at a non-default server.
func WithBaseURL(url string) GollmOption {
	return func(c *gollmConfig) { c.baseURL = url }
}

// WithContextSize overrides the catalog context window.
func WithContextSize(n int) GollmOption {
	return func(c *gollmConfig) { c.contextSize = n }
}

func WithGollmOptions(opts ...gollm.ConfigOption) GollmOption {
	return func(c *gollmConfig) { c.extraOpts = append(c.extraOpts, opts...) }
}

// NewGollmProvider builds a provider. An empty model selects the catalog default.
func NewGollmProvider(provider, model string, opts ...GollmOption) (*GollmProvider, error) {
	cfg := &gollmConfig{
		maxTokens:   4096,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if model == "" {
		info := DefaultModel(provider)
		if info == nil {
			return nil, &ConfigurationError{SDKError: SDKError{Message: fmt.Sprintf("no default model for provider %q", provider)}}
		}
		model = info.ID
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // Manager retries.
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	if provider == "ollama" && cfg.baseURL != "" {
		gollmOpts = append(gollmOpts, gollm.SetOllamaEndpoint(cfg.baseURL))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", provider, err)
	}
	return NewGollmProviderFromLLM(provider, model, llm, cfg.contextSize), nil
}

// NewGollmProviderFromLLM wraps an existing gollm.LLM. A zero contextSize
// falls back to the catalog.
func NewGollmProviderFromLLM(provider, model string, llm gollm.LLM, contextSize int) *GollmProvider {
	if contextSize <= 0 {
		contextSize = ContextWindow(model)
	}
	return &GollmProvider{
		provider:    provider,
		model:       model,
		contextSize: contextSize,
		llm:         llm,
	}
}

func (p *GollmProvider) Name() string     { return p.provider }
func (p *GollmProvider) Model() string    { return p.model }
func (p *GollmProvider) ContextSize() int { return p.contextSize }

// Complete sends prompt as a single user turn.
func (p *GollmProvider) Complete(ctx context.Context, prompt string) (*Completion, error) {
	text, err := p.llm.Generate(ctx, gollm.NewPrompt(prompt))
	if err != nil {
		return nil, classifyError(p.provider, err)
	}
	return &Completion{
		Text:     text,
		Provider: p.provider,
		Model:    p.model,
	}, nil
}

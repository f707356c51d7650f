package llm

import "context"

// Provider is one model backend.
type Provider interface {
	// Name returns the provider identifier ("openai", "gemini", ...).
	Name() string
	// Model returns the model id requests are sent to.
	Model() string
	// ContextSize returns the model's context window in tokens.
	ContextSize() int
	// Complete sends a single-turn prompt and blocks for the full reply.
	Complete(ctx context.Context, prompt string) (*Completion, error)
}

// Closer is implemented by providers that hold resources.
type Closer interface {
	Close() error
}

// Usage counts tokens for one call. Zero values mean the backend did not
// report them.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// Completion is a provider reply.
type Completion struct {
	Text     string
	Provider string
	Model    string
	Usage    Usage
}

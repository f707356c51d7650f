package llm

import (
	"context"
	"fmt"
)

// LocalProvider answers without a network call. It is registered when no
// real provider is configured so the loop can still be exercised offline.
type LocalProvider struct{}

func (LocalProvider) Name() string     { return "local" }
func (LocalProvider) Model() string    { return "local-echo" }
func (LocalProvider) ContextSize() int { return 4096 }

func (LocalProvider) Complete(_ context.Context, prompt string) (*Completion, error) {
	return &Completion{
		Text:     fmt.Sprintf("Local provider received a %d character prompt. No model is configured.", len(prompt)),
		Provider: "local",
		Model:    "local-echo",
	}, nil
}

// Package llm is the model-access layer of cliengineer. It presents every
// backend as a Provider with a single blocking Complete call and routes
// prompts through a Manager that adds retry with backoff, telemetry events
// and token/cost accounting.
//
// Backends:
//
//   - GollmProvider covers openai, anthropic, openrouter and ollama through
//     github.com/teilomillet/gollm.
//   - GeminiProvider calls Gemini through google.golang.org/genai.
//   - LocalProvider answers offline when nothing is configured.
//
// Usage:
//
//	p, _ := llm.NewGollmProvider("anthropic", "claude-sonnet-4-0")
//	m := llm.NewManager(llm.WithProvider(p), llm.WithEmitter(bus))
//	reply, err := m.SendPrompt(ctx, "Summarize this diff")
//
// Errors returned by providers belong to a typed hierarchy rooted at
// SDKError; IsRetryable decides which of them Retry will attempt again.
package llm

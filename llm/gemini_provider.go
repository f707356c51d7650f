package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider calls the Gemini API through the genai SDK.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	contextSize int
}

// NewGeminiProvider creates a Gemini provider. An empty apiKey lets the SDK
// read GEMINI_API_KEY / GOOGLE_API_KEY.
func NewGeminiProvider(ctx context.Context, apiKey, model string, temperature float64, contextSize int) (*GeminiProvider, error) {
	if model == "" {
		model = DefaultModel("gemini").ID
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if contextSize <= 0 {
		contextSize = ContextWindow(model)
	}
	return &GeminiProvider{
		client:      client,
		model:       model,
		temperature: float32(temperature),
		maxTokens:   8192,
		contextSize: contextSize,
	}, nil
}

func (p *GeminiProvider) Name() string     { return "gemini" }
func (p *GeminiProvider) Model() string    { return p.model }
func (p *GeminiProvider) ContextSize() int { return p.contextSize }

func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (*Completion, error) {
	temp := p.temperature
	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			Temperature:     &temp,
			MaxOutputTokens: p.maxTokens,
		})
	if err != nil {
		return nil, p.translateError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &ProviderError{
			SDKError: SDKError{Message: "gemini returned no candidates"},
			Provider: "gemini",
		}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}

	c := &Completion{Text: sb.String(), Provider: "gemini", Model: p.model}
	if u := resp.UsageMetadata; u != nil {
		c.Usage = Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
		}
	}
	return c, nil
}

func (p *GeminiProvider) translateError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return ErrorFromStatusCode(apiErr.Code, apiErr.Message, "gemini", err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code != 0 {
		return ErrorFromStatusCode(apiErrPtr.Code, apiErrPtr.Message, "gemini", err)
	}
	return classifyError("gemini", err)
}

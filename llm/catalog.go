package llm

// ModelInfo describes a known model.
type ModelInfo struct {
	ID                   string
	Provider             string
	DisplayName          string
	ContextWindow        int
	InputCostPerMillion  float64
	OutputCostPerMillion float64
	Aliases              []string
}

// Models is the built-in catalog. The first entry per provider is its default.
var Models = []ModelInfo{
	{ID: "o4-mini", Provider: "openai", DisplayName: "o4-mini",
		ContextWindow: 200000, InputCostPerMillion: 1.10, OutputCostPerMillion: 4.40},
	{ID: "gpt-4.1", Provider: "openai", DisplayName: "GPT-4.1",
		ContextWindow: 1047576, InputCostPerMillion: 2.00, OutputCostPerMillion: 8.00},
	{ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o mini",
		ContextWindow: 128000, InputCostPerMillion: 0.15, OutputCostPerMillion: 0.60},

	{ID: "claude-sonnet-4-0", Provider: "anthropic", DisplayName: "Claude Sonnet 4",
		ContextWindow: 200000, InputCostPerMillion: 3.0, OutputCostPerMillion: 15.0,
		Aliases: []string{"claude-sonnet-4-20250514", "sonnet"}},
	{ID: "claude-opus-4-0", Provider: "anthropic", DisplayName: "Claude Opus 4",
		ContextWindow: 200000, InputCostPerMillion: 15.0, OutputCostPerMillion: 75.0,
		Aliases: []string{"claude-opus-4-20250514", "opus"}},

	{ID: "gemini-1.5-flash-latest", Provider: "gemini", DisplayName: "Gemini 1.5 Flash",
		ContextWindow: 1048576, InputCostPerMillion: 0.075, OutputCostPerMillion: 0.30,
		Aliases: []string{"gemini-1.5-flash"}},
	{ID: "gemini-2.5-pro", Provider: "gemini", DisplayName: "Gemini 2.5 Pro",
		ContextWindow: 1048576, InputCostPerMillion: 1.25, OutputCostPerMillion: 10.0},

	{ID: "deepseek/deepseek-r1-0528-qwen3-8b", Provider: "openrouter", DisplayName: "DeepSeek R1 0528 Qwen3 8B",
		ContextWindow: 32000, InputCostPerMillion: 0.01, OutputCostPerMillion: 0.02},

	{ID: "qwen3:8b", Provider: "ollama", DisplayName: "Qwen3 8B (local)", ContextWindow: 40960},
}

// GetModelInfo returns the catalog entry for an id or alias, or nil.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ListModels returns known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	var result []ModelInfo
	for _, m := range Models {
		if provider == "" || m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// DefaultModel returns the preferred model for a provider, or nil.
func DefaultModel(provider string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider == provider {
			return &Models[i]
		}
	}
	return nil
}

// ContextWindow returns the advertised window for a model, or 0 when unknown.
func ContextWindow(modelID string) int {
	if info := GetModelInfo(modelID); info != nil {
		return info.ContextWindow
	}
	return 0
}

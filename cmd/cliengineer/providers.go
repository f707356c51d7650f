package main

import (
	"context"
	"os"

	"github.com/martinemde/cliengineer/config"
	"github.com/martinemde/cliengineer/llm"
	"github.com/martinemde/cliengineer/logging"
)

// apiKeyEnv names the environment variable holding each provider's key.
// Ollama runs locally and needs none.
var apiKeyEnv = map[string]string{
	"openrouter": "OPENROUTER_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

// buildProviders constructs every enabled provider in configuration order.
// Providers that are missing a key or fail to initialize are skipped with a
// warning. When nothing is usable the local echo provider is returned.
func buildProviders(ctx context.Context, cfg *config.Config, logger *logging.Logger) []llm.Provider {
	var providers []llm.Provider
	for _, np := range cfg.AIProviders.Named() {
		if !np.Config.Enabled {
			continue
		}
		log := logger.With("provider", np.Name, "model", np.Config.Model)

		key := ""
		if env, ok := apiKeyEnv[np.Name]; ok {
			key = os.Getenv(env)
			if key == "" {
				log.Warn("provider enabled but API key is not set", "env", env)
				continue
			}
		}

		p, err := newProvider(ctx, np.Name, key, np.Config)
		if err != nil {
			log.Warn("failed to initialize provider", "error", err)
			continue
		}
		log.Info("provider registered", "context_size", p.ContextSize())
		providers = append(providers, p)
	}

	if len(providers) == 0 {
		logger.Warn("no model provider available, using the local echo provider")
		providers = append(providers, llm.LocalProvider{})
	}
	return providers
}

func newProvider(ctx context.Context, name, key string, pc config.ProviderConfig) (llm.Provider, error) {
	if name == "gemini" {
		return llm.NewGeminiProvider(ctx, key, pc.Model, pc.Temperature, pc.MaxTokens)
	}

	opts := []llm.GollmOption{
		llm.WithTemperature(pc.Temperature),
		llm.WithContextSize(pc.MaxTokens),
	}
	if key != "" {
		opts = append(opts, llm.WithAPIKey(key))
	}
	if pc.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(pc.BaseURL))
	}
	return llm.NewGollmProvider(name, pc.Model, opts...)
}

// pricingOverrides returns configured per-provider costs. Providers without
// an override are priced from the model catalog.
func pricingOverrides(cfg *config.Config) map[string]llm.Pricing {
	out := make(map[string]llm.Pricing)
	for _, np := range cfg.AIProviders.Named() {
		if np.Config.CostPer1MInput == 0 && np.Config.CostPer1MOutput == 0 {
			continue
		}
		out[np.Name] = llm.Pricing{
			InputPerMillion:  np.Config.CostPer1MInput,
			OutputPerMillion: np.Config.CostPer1MOutput,
		}
	}
	return out
}

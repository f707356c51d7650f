// Package config loads cliengineer settings from TOML, environment variables
// and built-in defaults using viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g.
// CLIENGINEER_EXECUTION_MAX_ITERATIONS.
const EnvPrefix = "CLIENGINEER"

// Config is the root configuration.
type Config struct {
	AIProviders AIProvidersConfig `mapstructure:"ai_providers"`
	Execution   ExecutionConfig   `mapstructure:"execution"`
	Context     ContextConfig     `mapstructure:"context"`
	UI          UIConfig          `mapstructure:"ui"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// ProviderConfig configures one model provider.
type ProviderConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	// MaxTokens overrides the model's advertised context window.
	MaxTokens int    `mapstructure:"max_tokens"`
	BaseURL   string `mapstructure:"base_url"`
	// Costs in USD per million tokens; zero means use the catalog.
	CostPer1MInput  float64 `mapstructure:"cost_per_1m_input_tokens"`
	CostPer1MOutput float64 `mapstructure:"cost_per_1m_output_tokens"`
}

// AIProvidersConfig lists providers in priority order of activation.
type AIProvidersConfig struct {
	OpenRouter ProviderConfig `mapstructure:"openrouter"`
	OpenAI     ProviderConfig `mapstructure:"openai"`
	Anthropic  ProviderConfig `mapstructure:"anthropic"`
	Gemini     ProviderConfig `mapstructure:"gemini"`
	Ollama     ProviderConfig `mapstructure:"ollama"`
}

// Named returns providers in the order they should be registered.
func (a AIProvidersConfig) Named() []NamedProvider {
	return []NamedProvider{
		{Name: "openrouter", Config: a.OpenRouter},
		{Name: "openai", Config: a.OpenAI},
		{Name: "anthropic", Config: a.Anthropic},
		{Name: "gemini", Config: a.Gemini},
		{Name: "ollama", Config: a.Ollama},
	}
}

// NamedProvider pairs a provider name with its settings.
type NamedProvider struct {
	Name   string
	Config ProviderConfig
}

type ExecutionConfig struct {
	MaxIterations   int    `mapstructure:"max_iterations"`
	ParallelEnabled bool   `mapstructure:"parallel_enabled"`
	ArtifactDir     string `mapstructure:"artifact_dir"`
	CleanupOnExit   bool   `mapstructure:"cleanup_on_exit"`
	DisableAutoGit  bool   `mapstructure:"disable_auto_git"`
}

type ContextConfig struct {
	// MaxTokens is the fallback budget when the active model's window is unknown.
	MaxTokens            int     `mapstructure:"max_tokens"`
	CompressionThreshold float64 `mapstructure:"compression_threshold"`
	CacheEnabled         bool    `mapstructure:"cache_enabled"`
	CacheDir             string  `mapstructure:"cache_dir"`
	ArchiveSize          int     `mapstructure:"archive_size"`
}

type UIConfig struct {
	Colorful     bool   `mapstructure:"colorful"`
	OutputFormat string `mapstructure:"output_format"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AIProviders: AIProvidersConfig{
			OpenRouter: ProviderConfig{Model: "deepseek/deepseek-r1-0528-qwen3-8b", Temperature: 0.2},
			// o4-mini only accepts temperature 1.0.
			OpenAI:    ProviderConfig{Enabled: true, Model: "o4-mini", Temperature: 1.0},
			Anthropic: ProviderConfig{Model: "claude-sonnet-4-0", Temperature: 0.7},
			Gemini:    ProviderConfig{Model: "gemini-1.5-flash-latest", Temperature: 0.2},
			Ollama: ProviderConfig{
				Model:       "qwen3:8b",
				Temperature: 0.7,
				BaseURL:     "http://localhost:11434",
				MaxTokens:   8192,
			},
		},
		Execution: ExecutionConfig{
			MaxIterations: 10,
			ArtifactDir:   "./artifacts",
		},
		Context: ContextConfig{
			MaxTokens:            100000,
			CompressionThreshold: 0.8,
			CacheEnabled:         true,
			CacheDir:             filepath.Join(".cli_engineer", "context_cache"),
			ArchiveSize:          64,
		},
		UI: UIConfig{
			Colorful:     true,
			OutputFormat: "terminal",
		},
		Log: LogConfig{Level: "INFO"},
		Metrics: MetricsConfig{
			Addr: ":9464",
		},
	}
}

// SetDefaults registers Default() with v so that unset keys resolve.
func SetDefaults(v *viper.Viper) {
	d := Default()
	for _, p := range d.AIProviders.Named() {
		prefix := "ai_providers." + p.Name + "."
		v.SetDefault(prefix+"enabled", p.Config.Enabled)
		v.SetDefault(prefix+"model", p.Config.Model)
		v.SetDefault(prefix+"temperature", p.Config.Temperature)
		v.SetDefault(prefix+"max_tokens", p.Config.MaxTokens)
		v.SetDefault(prefix+"base_url", p.Config.BaseURL)
		v.SetDefault(prefix+"cost_per_1m_input_tokens", p.Config.CostPer1MInput)
		v.SetDefault(prefix+"cost_per_1m_output_tokens", p.Config.CostPer1MOutput)
	}

	v.SetDefault("execution.max_iterations", d.Execution.MaxIterations)
	v.SetDefault("execution.parallel_enabled", d.Execution.ParallelEnabled)
	v.SetDefault("execution.artifact_dir", d.Execution.ArtifactDir)
	v.SetDefault("execution.cleanup_on_exit", d.Execution.CleanupOnExit)
	v.SetDefault("execution.disable_auto_git", d.Execution.DisableAutoGit)

	v.SetDefault("context.max_tokens", d.Context.MaxTokens)
	v.SetDefault("context.compression_threshold", d.Context.CompressionThreshold)
	v.SetDefault("context.cache_enabled", d.Context.CacheEnabled)
	v.SetDefault("context.cache_dir", d.Context.CacheDir)
	v.SetDefault("context.archive_size", d.Context.ArchiveSize)

	v.SetDefault("ui.colorful", d.UI.Colorful)
	v.SetDefault("ui.output_format", d.UI.OutputFormat)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// NewViper returns a viper instance with defaults, env overrides and the
// config file search path. cfgFile, when set, bypasses the search.
func NewViper(cfgFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("cliengineer")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath(Dir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file (a missing file is not an error), unmarshals
// and validates.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &cfg, nil
}

// Dir returns the per-user config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cliengineer")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cliengineer"
	}
	return filepath.Join(home, ".config", "cliengineer")
}

package config

import (
	"fmt"
	"strings"
)

// ValidationError is a single invalid field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every failure found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

var validOutputFormats = map[string]bool{"terminal": true, "json": true, "plain": true}

// Validate reports every invalid setting. A nil result means valid.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if c.Execution.MaxIterations < 1 {
		add("execution.max_iterations", c.Execution.MaxIterations, "must be at least 1")
	}
	if c.Execution.ArtifactDir == "" {
		add("execution.artifact_dir", c.Execution.ArtifactDir, "must not be empty")
	}
	if c.Context.MaxTokens <= 0 {
		add("context.max_tokens", c.Context.MaxTokens, "must be positive")
	}
	if t := c.Context.CompressionThreshold; t <= 0 || t > 1 {
		add("context.compression_threshold", t, "must be in (0, 1]")
	}
	if c.Context.ArchiveSize < 1 {
		add("context.archive_size", c.Context.ArchiveSize, "must be at least 1")
	}
	if !validOutputFormats[c.UI.OutputFormat] {
		add("ui.output_format", c.UI.OutputFormat, "must be terminal, json or plain")
	}
	for _, p := range c.AIProviders.Named() {
		if !p.Config.Enabled {
			continue
		}
		if p.Config.Model == "" {
			add("ai_providers."+p.Name+".model", p.Config.Model, "required when enabled")
		}
		if p.Config.Temperature < 0 || p.Config.Temperature > 2 {
			add("ai_providers."+p.Name+".temperature", p.Config.Temperature, "must be in [0, 2]")
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

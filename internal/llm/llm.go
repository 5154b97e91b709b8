// Package llm provides the language model provider used for synthesis.
package llm

import (
	"context"
	"fmt"
)

// Provider abstracts an LLM backend.
type Provider interface {
	// Generate generates text using the specified model
	Generate(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, error)

	// GenerateWithTokens generates text and returns token usage
	GenerateWithTokens(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, int64, int64, error)

	// GetAvailableModels returns the models this provider can serve
	GetAvailableModels() []string
}

// Routing maps orchestration steps to model names.
type Routing struct {
	Synthesis string
	Fallback  string
}

// ModelFor returns the model to use for a step, falling back when the
// primary is not configured.
func (r Routing) ModelFor(step string) (string, error) {
	var model string
	switch step {
	case "synthesis":
		model = r.Synthesis
	default:
		return "", fmt.Errorf("unknown routing step %q", step)
	}
	if model == "" {
		model = r.Fallback
	}
	if model == "" {
		return "", fmt.Errorf("no model routed for step %q", step)
	}
	return model, nil
}

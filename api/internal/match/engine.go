package match

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pokiface/api/internal/match/types"
)

// ErrProviderFailure wraps every upstream failure (non-2xx, transport, empty reply).
var ErrProviderFailure = errors.New("provider failure")

// Engine sends one analysis request to a vision provider and returns the model's raw text.
// credential overrides the engine's configured key when non-empty.
type Engine interface {
	Name() string
	GetModel() string
	Analyze(ctx context.Context, credential string, req types.AnalysisRequest) (string, error)
}

type Engines struct {
	Gemini Engine
	Azure  Engine

	Default string
}

func (e *Engines) GetEngine(llmName string) (Engine, error) {
	name := strings.ToLower(strings.TrimSpace(llmName))
	if name == "" {
		name = e.Default
	}
	var eng Engine
	switch name {
	case "gemini":
		eng = e.Gemini
	case "azure", "gpt", "openai":
		eng = e.Azure
	default:
		return nil, fmt.Errorf("unknown llm_name %q; use 'gemini' or 'azure'", llmName)
	}
	if eng == nil {
		return nil, fmt.Errorf("engine %q is not configured", name)
	}
	return eng, nil
}

// ProviderError carries the provider's own message when it sent one.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "Unknown error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API Error (%d): %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s API Error: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error { return ErrProviderFailure }

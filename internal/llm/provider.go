// Package llm holds the generation-provider abstraction, the retry layer
// wrapped around every provider call, and the Gemini implementation.
package llm

import "context"

// Capability is an optional tool the provider may use while generating.
type Capability string

const (
	CapabilitySearch Capability = "search"
	CapabilityFetch  Capability = "fetch"
)

// Request is a single generation call.
type Request struct {
	Model        string
	Prompt       string
	MaxTokens    int32
	Capabilities []Capability
}

// Generator produces text for a prompt. Implementations must be safe for
// concurrent use; research agents share one instance.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

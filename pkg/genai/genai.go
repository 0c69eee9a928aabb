// Package genai is the text-generation client used by the dispatcher and the
// order intake pipeline.
package genai

import "context"

// Generator turns a prompt into model text. Implementations make a single
// attempt per call and respect ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

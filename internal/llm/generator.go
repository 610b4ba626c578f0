// Package llm wraps the text-generation providers used to draft and revise essays.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("provider returned no text")

// Request is one single-shot completion.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Fallback tries each generator in order and returns the first success.
type Fallback []Generator

// Generate implements Generator.
func (f Fallback) Generate(ctx context.Context, req Request) (string, error) {
	var errs []error
	for _, g := range f {
		text, err := g.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", errors.New("no text generation provider configured")
	}
	return "", errors.Join(errs...)
}

package llm

import (
	"context"
	"errors"
)

// ErrUnavailable is the single failure kind surfaced for any provider error.
// Orchestrators catch it at their boundary and answer with a safe placeholder.
var ErrUnavailable = errors.New("language model unavailable")

type Options struct {
	Temperature float32
	MaxTokens   int32
	System      string // optional system instruction
}

type Provider interface {
	// Generate returns the full response text for a prompt.
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
	// Stream returns incremental text chunks. The chunk channel is closed when
	// the stream ends; errs carries at most one error and is always closed
	// afterwards, so consumers may receive from it unconditionally.
	Stream(ctx context.Context, prompt string, opts Options) (chunks <-chan string, errs <-chan error)
	Close() error
}

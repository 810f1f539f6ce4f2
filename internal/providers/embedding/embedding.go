package embedding

import "context"

// Provider computes fixed-length semantic vectors. Implementations never
// propagate provider failures: blank input or an upstream error yields a nil
// vector, and callers degrade to non-semantic matching.
type Provider interface {
	Embed(ctx context.Context, text string) []float32
	Dimensions() int
	Close() error
}

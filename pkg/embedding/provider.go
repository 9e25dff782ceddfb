// Package embedding adapts an opaque embedding model (§1 "external
// collaborator... fixed-dimension float vector from text") behind a
// synchronous interface, bridging its inherently async inference onto a
// dedicated worker goroutine (§9 "Async bridging").
package embedding

import "context"

// Provider computes a fixed-dimension embedding for text. Implementations
// may not touch SQLite or any shared mutable state (§4.2) — CPU/network
// only.
type Provider interface {
	// Embed returns the embedding for text at the provider's fixed dimension.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimension reports the fixed output length.
	Dimension() int
}

// Fn adapts a plain function to a Provider, mirroring the module's
// function-type hook convention (pool.FactExtractorFn, retrieval.RerankerFn) for the same
// reason: callers wire in concrete embedding backends without this package
// depending on any of them.
type Fn struct {
	Dim int
	Call func(ctx context.Context, text string) ([]float32, error)
}

func (f Fn) Embed(ctx context.Context, text string) ([]float32, error) { return f.Call(ctx, text) }
func (f Fn) Dimension() int                                            { return f.Dim }

package interfaces

import "context"

// Optimizer is the Search-Term Optimizer contract (spec.md §4.G), consumed
// by the Term Generator as an advisory hint source.
type Optimizer interface {
	Suggest(ctx context.Context, limit int) ([]string, error)
}

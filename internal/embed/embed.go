// Package embed is the boundary to the external embedding service:
// text in, fixed-length float vector out. The model and endpoint are
// external configuration; the core only checks that vector lengths match
// the store's configured dimension.
package embed

import (
	"context"
	"errors"
)

// ErrUpstream indicates the embedding service call failed after the
// configured retry budget. The coordinator turns this into an empty
// retrieval, never a session failure.
var ErrUpstream = errors.New("embedding service error")

// Embedder converts text into an embedding vector. Implementations must be
// safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

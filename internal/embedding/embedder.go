package embedding

import (
	"context"
	"errors"
)

// ErrService indicates a failure of the external embedding collaborator.
// Transient causes are retried a bounded number of times by the retrying
// wrapper; exhaustion surfaces this error to the caller of Rank.
var ErrService = errors.New("embedding service failure")

// Embedder converts text into fixed-length vectors. Implementations must be
// deterministic for a fixed model version, with the dimension fixed at
// construction time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flakyEmbedder fails a fixed number of times before succeeding.
type flakyEmbedder struct {
	failures int
	calls    int
	dim      int
}

func (f *flakyEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient failure")
	}
	return make([]float32, f.dim), nil
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient failure")
	}
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = make([]float32, f.dim)
	}
	return vecs, nil
}

func (f *flakyEmbedder) Dimension() int { return f.dim }

func TestRetryingRecoversFromTransientFailure(t *testing.T) {
	inner := &flakyEmbedder{failures: 2, dim: 4}
	embedder := NewRetrying(inner, 2, time.Millisecond, zap.NewNop())

	vec, err := embedder.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, 4, embedder.Dimension())
}

func TestRetryingExhaustsRetries(t *testing.T) {
	inner := &flakyEmbedder{failures: 10, dim: 4}
	embedder := NewRetrying(inner, 2, time.Millisecond, zap.NewNop())

	_, err := embedder.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrService)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingStopsOnCancelledContext(t *testing.T) {
	inner := &flakyEmbedder{failures: 10, dim: 4}
	embedder := NewRetrying(inner, 5, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := embedder.Embed(ctx, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrService)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingZeroRetries(t *testing.T) {
	inner := &flakyEmbedder{failures: 1, dim: 4}
	embedder := NewRetrying(inner, 0, time.Millisecond, zap.NewNop())

	_, err := embedder.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrService)
	assert.Equal(t, 1, inner.calls)
}

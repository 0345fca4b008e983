package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/MikeCob/noc-job-matcher/internal/utils"
	"go.uber.org/zap"
)

const defaultBackoff = 2 * time.Second

// retrying decorates an Embedder with a bounded retry policy. Only the
// embedding calls themselves are retried; every other error kind in the
// system is treated as permanent.
type retrying struct {
	inner      Embedder
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewRetrying wraps the given embedder so each call is attempted up to
// 1+maxRetries times with linear backoff between attempts.
func NewRetrying(inner Embedder, maxRetries int, backoff time.Duration, logger *zap.Logger) Embedder {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &retrying{
		inner:      inner,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

func (r *retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := r.attempt(ctx, func() error {
		var embedErr error
		vec, embedErr = r.inner.Embed(ctx, text)
		return embedErr
	})
	return vec, err
}

func (r *retrying) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := r.attempt(ctx, func() error {
		var embedErr error
		vecs, embedErr = r.inner.EmbedBatch(ctx, texts)
		return embedErr
	})
	return vecs, err
}

func (r *retrying) Dimension() int {
	return r.inner.Dimension()
}

func (r *retrying) attempt(ctx context.Context, call func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := utils.WaitFor(ctx, time.Duration(attempt)*r.backoff); err != nil {
				return fmt.Errorf("%w: %w", ErrService, err)
			}
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}

		r.logger.Warn("embedding call failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", r.maxRetries+1),
			zap.Error(lastErr),
		)
	}

	return fmt.Errorf("%w: %w", ErrService, lastErr)
}

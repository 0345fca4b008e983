// Package matcher ranks taxonomy entries against a free-text job description
// using a two-level hybrid of profile and duty embedding similarity.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MikeCob/noc-job-matcher/internal/composite"
	"github.com/MikeCob/noc-job-matcher/internal/embedding"
	"github.com/MikeCob/noc-job-matcher/internal/extractor"
	"github.com/MikeCob/noc-job-matcher/internal/noc"
	"go.uber.org/zap"
)

var (
	// ErrInvalidArgument indicates a malformed query (blank job text or
	// non-positive top-k).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDimensionMismatch indicates query embeddings disagree with the
	// cache's stored dimensionality. A configuration error, never recovered.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrTimeout indicates the query deadline expired. Partial rankings are
	// misleading, so none are returned.
	ErrTimeout = errors.New("ranking timed out")
)

// DefaultTopK is how many results a query returns unless asked otherwise.
const DefaultTopK = 10

// Matcher scores job descriptions against an immutable taxonomy and its
// precomputed embedding cache. Safe for concurrent use; queries share the
// cache read-only.
type Matcher struct {
	taxonomy *noc.Taxonomy
	cache    *embedding.Cache
	embedder embedding.Embedder
	logger   *zap.Logger
}

// New validates that the embedder and cache agree on dimensionality and
// returns a ready Matcher.
func New(taxonomy *noc.Taxonomy, cache *embedding.Cache, embedder embedding.Embedder, logger *zap.Logger) (*Matcher, error) {
	if taxonomy == nil || cache == nil || embedder == nil {
		return nil, errors.New("taxonomy, cache and embedder are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if dim := embedder.Dimension(); dim != 0 && dim != cache.Dimension() {
		return nil, fmt.Errorf("%w: embedder produces dimension %d, cache holds %d",
			ErrDimensionMismatch, dim, cache.Dimension())
	}

	return &Matcher{
		taxonomy: taxonomy,
		cache:    cache,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Rank matches the job text against every taxonomy entry and returns the
// topK best results, ordered by hybrid score descending with ties broken by
// entry code ascending. The whole-text and per-responsibility embeddings are
// fetched concurrently; scoring starts only once all of them are available.
func (m *Matcher) Rank(ctx context.Context, jobText string, topK int) (*Results, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: top-k must be at least 1, got %d", ErrInvalidArgument, topK)
	}
	if strings.TrimSpace(jobText) == "" {
		return nil, fmt.Errorf("%w: job text is empty", ErrInvalidArgument)
	}

	responsibilities := extractor.Extract(jobText)

	normalized := make([]string, len(responsibilities))
	for i, resp := range responsibilities {
		normalized[i] = composite.NormalizeDuty(resp)
	}

	m.logger.Debug("extracted responsibilities",
		zap.Int("count", len(responsibilities)),
	)

	var (
		jobVec   []float32
		respVecs [][]float32
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		jobVec, err = m.embedder.Embed(gctx, jobText)
		return err
	})
	g.Go(func() error {
		var err error
		respVecs, err = m.embedder.EmbedBatch(gctx, normalized)
		return err
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, err
	}

	results := make([]*MatchResult, 0, m.taxonomy.Len())
	for _, entry := range m.taxonomy.Entries {
		result, err := m.ScoreEntry(entry, jobVec, respVecs, responsibilities)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Code < results[j].Code
	})

	if topK < len(results) {
		results = results[:topK]
	}

	if len(results) > 0 {
		m.logger.Debug("ranking complete",
			zap.Int("returned", len(results)),
			zap.Float64("best_score", results[0].Score),
		)
	}

	return &Results{Items: results}, nil
}

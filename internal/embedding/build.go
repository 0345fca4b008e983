package embedding

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeCob/noc-job-matcher/internal/composite"
	"github.com/MikeCob/noc-job-matcher/internal/noc"
	"go.uber.org/zap"
)

const (
	// batchSize is how many texts go into one embedding call.
	batchSize = 32
	// buildConcurrency bounds the parallel embedding calls during a build.
	buildConcurrency = 4
)

// BuildCache embeds every entry's weighted composite exactly once and every
// normalized duty exactly once, in canonical order (taxonomy entry order,
// duty-within-entry order). Batches run in parallel but results are written
// back by index, so re-runs with the same embedder and data reproduce
// identical output.
func BuildCache(ctx context.Context, taxonomy *noc.Taxonomy, embedder Embedder, model string, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	composites := make([]string, 0, taxonomy.Len())
	for _, entry := range taxonomy.Entries {
		composites = append(composites, composite.Build(entry))
	}

	dutyTexts := make([]string, 0, taxonomy.DutyCount())
	dutyRaw := make([]string, 0, taxonomy.DutyCount())
	dutyCodes := make([]string, 0, taxonomy.DutyCount())
	for _, entry := range taxonomy.Entries {
		for _, duty := range entry.MainDuties {
			dutyTexts = append(dutyTexts, composite.NormalizeDuty(duty))
			dutyRaw = append(dutyRaw, duty)
			dutyCodes = append(dutyCodes, entry.Code)
		}
	}

	logger.Info("building embedding cache",
		zap.Int("entries", taxonomy.Len()),
		zap.Int("duties", len(dutyTexts)),
	)

	profileVecs, err := embedAll(ctx, embedder, composites)
	if err != nil {
		return nil, fmt.Errorf("embedding entry profiles: %w", err)
	}

	dutyVecs, err := embedAll(ctx, embedder, dutyTexts)
	if err != nil {
		return nil, fmt.Errorf("embedding duties: %w", err)
	}

	dimension := embedder.Dimension()
	if dimension <= 0 && len(profileVecs) > 0 {
		dimension = len(profileVecs[0])
	}

	profiles := make(map[string][]float32, taxonomy.Len())
	for i, entry := range taxonomy.Entries {
		profiles[entry.Code] = profileVecs[i]
	}

	duties := make([]DutyEmbedding, len(dutyTexts))
	for i := range dutyTexts {
		duties[i] = DutyEmbedding{
			Code:   dutyCodes[i],
			Text:   dutyRaw[i],
			Vector: dutyVecs[i],
		}
	}

	cache := &Cache{
		Meta: Meta{
			Fingerprint: taxonomy.Fingerprint(),
			Model:       model,
			Dimension:   dimension,
			EntryCount:  taxonomy.Len(),
			DutyCount:   len(duties),
			CreatedAt:   time.Now().UTC(),
		},
		Profiles: profiles,
		Duties:   duties,
	}
	cache.index()

	return cache, nil
}

// embedAll embeds the texts in fixed-size batches with bounded parallelism.
// Each batch writes into its own slot of the result slice, keeping the output
// aligned with the input order regardless of completion order.
func embedAll(ctx context.Context, embedder Embedder, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(buildConcurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		g.Go(func() error {
			vecs, err := embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return fmt.Errorf("%w: requested %d embeddings, got %d", ErrService, end-start, len(vecs))
			}
			copy(results[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

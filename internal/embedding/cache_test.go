package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MikeCob/noc-job-matcher/internal/noc"
)

// hashEmbedder derives a deterministic unit-length vector from the text, so
// cache builds are reproducible without a real embedding service.
type hashEmbedder struct {
	dim   int
	calls int
}

func (h *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h.calls++
	sum := sha256.Sum256([]byte(text))

	vec := make([]float32, h.dim)
	var norm float64
	for i := range vec {
		bits := binary.BigEndian.Uint32(sum[(i*4)%28 : (i*4)%28+4])
		vec[i] = float32(bits%1000) / 1000
		norm += float64(vec[i]) * float64(vec[i])
	}
	if norm == 0 {
		vec[0] = 1
	}
	return vec, nil
}

func (h *hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (h *hashEmbedder) Dimension() int { return h.dim }

func testTaxonomy(t *testing.T) *noc.Taxonomy {
	t.Helper()

	path := filepath.Join(t.TempDir(), "noc.csv")
	content := "noc_code,title,description,main_duties,employment_requirements,example_titles,additional_information,url\n" +
		`21232,Software developers,Write programs,Write code|Maintain programs,Degree,developer,,` + "\n" +
		`31301,Registered nurses,Provide care,Assess patients|Administer medications|Monitor vital signs,License,nurse,,` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	taxonomy, err := noc.Load(path, noc.OnMalformedReject, zap.NewNop())
	require.NoError(t, err)
	return taxonomy
}

func TestBuildCache(t *testing.T) {
	taxonomy := testTaxonomy(t)
	embedder := &hashEmbedder{dim: 8}

	cache, err := BuildCache(context.Background(), taxonomy, embedder, "test-model", zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, taxonomy.Fingerprint(), cache.Meta.Fingerprint)
	assert.Equal(t, 2, cache.Meta.EntryCount)
	assert.Equal(t, 5, cache.Meta.DutyCount)
	assert.Equal(t, 8, cache.Meta.Dimension)
	assert.Equal(t, "test-model", cache.Meta.Model)

	// One embedding per composite plus one per duty.
	assert.Equal(t, 7, embedder.calls)

	require.Len(t, cache.Profiles, 2)
	require.Len(t, cache.Duties, 5)

	// Canonical order: taxonomy entry order, duty-within-entry order. The
	// stored text is the duty as written, not the normalized embed text.
	assert.Equal(t, "21232", cache.Duties[0].Code)
	assert.Equal(t, "Write code", cache.Duties[0].Text)
	assert.Equal(t, "Maintain programs", cache.Duties[1].Text)
	assert.Equal(t, "31301", cache.Duties[2].Code)

	owned := cache.DutiesFor("31301")
	require.Len(t, owned, 3)
	assert.Equal(t, "Assess patients", owned[0].Text)
}

func TestBuildCacheReproducible(t *testing.T) {
	taxonomy := testTaxonomy(t)

	first, err := BuildCache(context.Background(), taxonomy, &hashEmbedder{dim: 8}, "m", zap.NewNop())
	require.NoError(t, err)
	second, err := BuildCache(context.Background(), taxonomy, &hashEmbedder{dim: 8}, "m", zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, first.Profiles, second.Profiles)
	assert.Equal(t, first.Duties, second.Duties)
}

func TestCacheRoundTrip(t *testing.T) {
	taxonomy := testTaxonomy(t)

	built, err := BuildCache(context.Background(), taxonomy, &hashEmbedder{dim: 8}, "test-model", zap.NewNop())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, built.Save(path))

	loaded, err := Load(path, taxonomy)
	require.NoError(t, err)

	assert.Equal(t, built.Meta.Fingerprint, loaded.Meta.Fingerprint)
	assert.Equal(t, built.Meta.Dimension, loaded.Meta.Dimension)
	assert.Equal(t, built.Profiles, loaded.Profiles)
	assert.Equal(t, built.Duties, loaded.Duties)
	assert.Equal(t, built.DutiesFor("21232"), loaded.DutiesFor("21232"))
}

func TestLoadMissingCache(t *testing.T) {
	taxonomy := testTaxonomy(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.json"), taxonomy)
	assert.ErrorIs(t, err, ErrCacheMissing)
}

func TestLoadVersionMismatch(t *testing.T) {
	taxonomy := testTaxonomy(t)

	built, err := BuildCache(context.Background(), taxonomy, &hashEmbedder{dim: 8}, "m", zap.NewNop())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, built.Save(path))

	// A taxonomy with a different entry set must be rejected.
	otherPath := filepath.Join(t.TempDir(), "other.csv")
	content := "noc_code,title,description,main_duties,employment_requirements,example_titles,additional_information,url\n" +
		`21232,Software developers,Write programs,Write code|Maintain programs,Degree,developer,,` + "\n"
	require.NoError(t, os.WriteFile(otherPath, []byte(content), 0o644))
	smaller, err := noc.Load(otherPath, noc.OnMalformedReject, zap.NewNop())
	require.NoError(t, err)

	_, err = Load(path, smaller)
	assert.ErrorIs(t, err, ErrCacheVersionMismatch)
}

func TestLoadDimensionInconsistency(t *testing.T) {
	taxonomy := testTaxonomy(t)

	built, err := BuildCache(context.Background(), taxonomy, &hashEmbedder{dim: 8}, "m", zap.NewNop())
	require.NoError(t, err)

	// Corrupt one duty vector.
	built.Duties[3].Vector = built.Duties[3].Vector[:4]

	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, built.Save(path))

	_, err = Load(path, taxonomy)
	assert.ErrorIs(t, err, ErrCacheVersionMismatch)
}

func TestBuildCachePropagatesServiceError(t *testing.T) {
	taxonomy := testTaxonomy(t)

	_, err := BuildCache(context.Background(), taxonomy, &failingEmbedder{}, "m", zap.NewNop())
	require.Error(t, err)
}

type failingEmbedder struct{}

func (f *failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("boom")
}

func (f *failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("boom")
}

func (f *failingEmbedder) Dimension() int { return 8 }

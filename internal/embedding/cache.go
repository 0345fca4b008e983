package embedding

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/MikeCob/noc-job-matcher/internal/noc"
)

var (
	// ErrCacheMissing indicates no cache file exists at the configured path.
	ErrCacheMissing = errors.New("embedding cache missing")
	// ErrCacheVersionMismatch indicates the stored cache disagrees with the
	// currently loaded taxonomy or is internally inconsistent. Matching must
	// not proceed; rebuilding the cache is an explicit operation, never a
	// fallback.
	ErrCacheVersionMismatch = errors.New("embedding cache version mismatch")
)

// Meta is the cache file header used for compatibility checks.
type Meta struct {
	Fingerprint string    `json:"fingerprint"`
	Model       string    `json:"model"`
	Dimension   int       `json:"dimension"`
	EntryCount  int       `json:"entry_count"`
	DutyCount   int       `json:"duty_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// DutyEmbedding pairs one duty statement with its vector. Text is the duty as
// written in the taxonomy, kept for display; the vector embeds its normalized
// form. Code is a weak back-reference into the taxonomy store; the cache
// never owns the entry.
type DutyEmbedding struct {
	Code   string    `json:"code"`
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

// Cache holds the precomputed profile and duty embeddings for a taxonomy.
// Immutable after build/load; safe for concurrent readers.
type Cache struct {
	Meta     Meta
	Profiles map[string][]float32
	Duties   []DutyEmbedding

	dutiesByCode map[string][]DutyEmbedding
}

// Dimension returns the embedding dimensionality stored with the cache.
func (c *Cache) Dimension() int {
	return c.Meta.Dimension
}

// Profile returns the profile embedding for the given entry code, or nil.
func (c *Cache) Profile(code string) []float32 {
	return c.Profiles[code]
}

// DutiesFor returns the duty embeddings owned by the given entry code, in
// duty-within-entry order.
func (c *Cache) DutiesFor(code string) []DutyEmbedding {
	return c.dutiesByCode[code]
}

func (c *Cache) index() {
	c.dutiesByCode = make(map[string][]DutyEmbedding)
	for _, d := range c.Duties {
		c.dutiesByCode[d.Code] = append(c.dutiesByCode[d.Code], d)
	}
}

// cacheFile is the serialized layout. Metadata stays a loose map on disk so
// compatibility checks can read headers written by other cache versions.
type cacheFile struct {
	Metadata map[string]any       `json:"metadata"`
	Profiles map[string][]float32 `json:"profiles"`
	Duties   []DutyEmbedding      `json:"duties"`
}

// Save serializes the cache to the given path.
func (c *Cache) Save(path string) error {
	metadata := map[string]any{
		"fingerprint": c.Meta.Fingerprint,
		"model":       c.Meta.Model,
		"dimension":   c.Meta.Dimension,
		"entry_count": c.Meta.EntryCount,
		"duty_count":  c.Meta.DutyCount,
		"created_at":  c.Meta.CreatedAt.Format(time.RFC3339Nano),
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saving embedding cache: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	if err := enc.Encode(cacheFile{
		Metadata: metadata,
		Profiles: c.Profiles,
		Duties:   c.Duties,
	}); err != nil {
		return fmt.Errorf("saving embedding cache: %w", err)
	}

	return file.Close()
}

// Load reads a cache file and verifies it against the loaded taxonomy. A
// missing file fails with ErrCacheMissing; any disagreement in fingerprint,
// counts, or dimensionality fails with ErrCacheVersionMismatch. There is no
// partial load.
func Load(path string, taxonomy *noc.Taxonomy) (*Cache, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCacheMissing, path)
		}
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}
	defer file.Close()

	var raw cacheFile
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrCacheVersionMismatch, path, err)
	}

	meta, err := decodeMeta(raw.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheVersionMismatch, err)
	}

	cache := &Cache{Meta: meta, Profiles: raw.Profiles, Duties: raw.Duties}
	cache.index()

	if err := cache.verify(taxonomy); err != nil {
		return nil, err
	}

	return cache, nil
}

// decodeMeta converts the loose metadata map into the typed header. JSON
// numbers arrive as float64, so the decode is weakly typed.
func decodeMeta(metadata map[string]any) (Meta, error) {
	var meta Meta

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &meta,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return meta, err
	}

	if err := decoder.Decode(metadata); err != nil {
		return meta, fmt.Errorf("decoding cache metadata: %w", err)
	}
	return meta, nil
}

func (c *Cache) verify(taxonomy *noc.Taxonomy) error {
	if fp := taxonomy.Fingerprint(); c.Meta.Fingerprint != fp {
		return fmt.Errorf("%w: taxonomy fingerprint %s, cache built for %s",
			ErrCacheVersionMismatch, fp, c.Meta.Fingerprint)
	}
	if c.Meta.EntryCount != taxonomy.Len() {
		return fmt.Errorf("%w: taxonomy has %d entries, cache has %d",
			ErrCacheVersionMismatch, taxonomy.Len(), c.Meta.EntryCount)
	}
	if c.Meta.DutyCount != taxonomy.DutyCount() || c.Meta.DutyCount != len(c.Duties) {
		return fmt.Errorf("%w: taxonomy has %d duties, cache header says %d with %d stored",
			ErrCacheVersionMismatch, taxonomy.DutyCount(), c.Meta.DutyCount, len(c.Duties))
	}
	if c.Meta.Dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", ErrCacheVersionMismatch, c.Meta.Dimension)
	}
	if len(c.Profiles) != taxonomy.Len() {
		return fmt.Errorf("%w: %d profile embeddings for %d entries",
			ErrCacheVersionMismatch, len(c.Profiles), taxonomy.Len())
	}

	for _, entry := range taxonomy.Entries {
		vec, ok := c.Profiles[entry.Code]
		if !ok {
			return fmt.Errorf("%w: no profile embedding for entry %s", ErrCacheVersionMismatch, entry.Code)
		}
		if len(vec) != c.Meta.Dimension {
			return fmt.Errorf("%w: profile embedding for %s has dimension %d, expected %d",
				ErrCacheVersionMismatch, entry.Code, len(vec), c.Meta.Dimension)
		}
		if owned := len(c.dutiesByCode[entry.Code]); owned != len(entry.MainDuties) {
			return fmt.Errorf("%w: entry %s owns %d duties, cache has %d",
				ErrCacheVersionMismatch, entry.Code, len(entry.MainDuties), owned)
		}
	}

	for _, d := range c.Duties {
		if len(d.Vector) != c.Meta.Dimension {
			return fmt.Errorf("%w: duty embedding for %s has dimension %d, expected %d",
				ErrCacheVersionMismatch, d.Code, len(d.Vector), c.Meta.Dimension)
		}
	}

	return nil
}

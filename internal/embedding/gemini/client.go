// Package gemini implements the embedding collaborator on top of the Google
// GenAI API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/MikeCob/noc-job-matcher/internal/embedding"
	"github.com/MikeCob/noc-job-matcher/internal/logger"
)

const (
	defaultModel     = "gemini-embedding-001"
	defaultDimension = 768
)

// contentEmbedder is the slice of the genai API the client depends on.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Client wraps the Google GenAI client to produce text embeddings with a
// fixed output dimensionality.
type Client struct {
	models    contentEmbedder
	modelName string
	dimension int
	logger    *zap.Logger
}

// NewClient creates a Client configured for the Gemini API backend.
func NewClient(ctx context.Context, apiKey, model string, dimension int, log *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if dimension <= 0 {
		dimension = defaultDimension
	}

	return &Client{
		models:    client.Models,
		modelName: model,
		dimension: dimension,
		logger:    logger.WithEmbeddingFields(log, "gemini", model),
	}, nil
}

// Dimension returns the configured output dimensionality.
func (c *Client) Dimension() int {
	if c == nil {
		return 0
	}
	return c.dimension
}

// Model returns the configured embedding model name.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.modelName
}

// Embed produces a single embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch produces embedding vectors for multiple texts in one call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c == nil || c.models == nil {
		return nil, errors.New("gemini embedding client is not initialized")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, errors.New("text to embed must not be empty")
		}
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	config := &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(c.dimension)),
	}

	c.logger.Debug("gemini embed content request", zap.Int("texts", len(texts)))

	resp, err := c.models.EmbedContent(ctx, c.modelName, contents, config)
	if err != nil {
		return nil, fmt.Errorf("%w: embed content: %w", embedding.ErrService, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: requested %d embeddings, got %d",
			embedding.ErrService, len(texts), len(resp.Embeddings))
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", embedding.ErrService, i)
		}
		if len(emb.Values) != c.dimension {
			return nil, fmt.Errorf("%w: embedding at index %d has dimension %d, expected %d",
				embedding.ErrService, i, len(emb.Values), c.dimension)
		}
		vecs[i] = emb.Values
	}

	return vecs, nil
}

package gemini

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/MikeCob/noc-job-matcher/internal/embedding"
)

type fakeModels struct {
	calls     []fakeEmbedCall
	response  *genai.EmbedContentResponse
	err       error
	lastModel string
}

type fakeEmbedCall struct {
	texts  []string
	config *genai.EmbedContentConfig
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.lastModel = model

	texts := make([]string, 0, len(contents))
	for _, content := range contents {
		for _, part := range content.Parts {
			texts = append(texts, part.Text)
		}
	}
	f.calls = append(f.calls, fakeEmbedCall{texts: texts, config: config})

	return f.response, f.err
}

func embeddingsOf(vecs ...[]float32) *genai.EmbedContentResponse {
	resp := &genai.EmbedContentResponse{}
	for _, vec := range vecs {
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: vec})
	}
	return resp
}

func TestClientEmbedBatch(t *testing.T) {
	fake := &fakeModels{response: embeddingsOf(
		[]float32{1, 0, 0},
		[]float32{0, 1, 0},
	)}

	client := &Client{models: fake, modelName: "embed-test", dimension: 3, logger: zap.NewNop()}

	vecs, err := client.EmbedBatch(context.Background(), []string{"first text", "second text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}

	if fake.lastModel != "embed-test" {
		t.Fatalf("unexpected model: %s", fake.lastModel)
	}

	if len(fake.calls) != 1 {
		t.Fatalf("expected a single batched call, got %d", len(fake.calls))
	}

	call := fake.calls[0]
	if len(call.texts) != 2 || call.texts[0] != "first text" {
		t.Fatalf("unexpected texts sent: %v", call.texts)
	}

	if call.config == nil || call.config.OutputDimensionality == nil || *call.config.OutputDimensionality != 3 {
		t.Fatalf("expected output dimensionality 3, got %+v", call.config)
	}
}

func TestClientEmbedDelegatesToBatch(t *testing.T) {
	fake := &fakeModels{response: embeddingsOf([]float32{1, 0, 0})}
	client := &Client{models: fake, modelName: "embed-test", dimension: 3, logger: zap.NewNop()}

	vec, err := client.Embed(context.Background(), "only text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected dimension 3, got %d", len(vec))
	}
}

func TestClientWrapsServiceErrors(t *testing.T) {
	fake := &fakeModels{err: errors.New("backend unavailable")}
	client := &Client{models: fake, modelName: "embed-test", dimension: 3, logger: zap.NewNop()}

	_, err := client.Embed(context.Background(), "text")
	if !errors.Is(err, embedding.ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
}

func TestClientRejectsWrongResponseShape(t *testing.T) {
	tests := []struct {
		name     string
		response *genai.EmbedContentResponse
	}{
		{name: "count mismatch", response: embeddingsOf([]float32{1, 0, 0})},
		{name: "dimension mismatch", response: embeddingsOf([]float32{1, 0}, []float32{0, 1})},
		{name: "empty embedding", response: embeddingsOf([]float32{1, 0, 0}, nil)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeModels{response: tc.response}
			client := &Client{models: fake, modelName: "embed-test", dimension: 3, logger: zap.NewNop()}

			_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
			if !errors.Is(err, embedding.ErrService) {
				t.Fatalf("expected ErrService, got %v", err)
			}
		})
	}
}

func TestClientRejectsEmptyText(t *testing.T) {
	client := &Client{models: &fakeModels{}, modelName: "embed-test", dimension: 3, logger: zap.NewNop()}

	if _, err := client.EmbedBatch(context.Background(), []string{"ok", "   "}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(context.Background(), "   ", "", 0, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

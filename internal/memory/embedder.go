// ABOUTME: OpenAI-compatible embedding client for the memory store
// ABOUTME: Points at a local embedding server (Ollama serves the same API shape)
package memory

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder generates embeddings via an OpenAI-compatible endpoint
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder against the given base URL and model.
// Local servers ignore the API key but the client requires a non-empty one.
func NewOpenAIEmbedder(baseURL, model string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig("local")
	cfg.BaseURL = baseURL
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.EmbeddingModel(model),
	}
}

// GenerateEmbedding generates an embedding vector for the given text
func (e *OpenAIEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	// Convert []float32 to []float64
	embedding32 := resp.Data[0].Embedding
	embedding64 := make([]float64, len(embedding32))
	for i, v := range embedding32 {
		embedding64[i] = float64(v)
	}
	return embedding64, nil
}

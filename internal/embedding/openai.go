package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"veridex/internal/model"
)

// OpenAIEngine embeds text through the OpenAI embeddings API.
// Text is lowercased and trimmed before encoding so that formatting
// variants share a vector.
type OpenAIEngine struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEngine creates an embeddings client from configuration
func NewOpenAIEngine(cfg model.EmbeddingConfig) (*OpenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	embModel := openai.EmbeddingModel(cfg.Model)
	if cfg.Model == "" {
		embModel = openai.SmallEmbedding3
	}

	return &OpenAIEngine{
		client: openai.NewClientWithConfig(clientConfig),
		model:  embModel,
	}, nil
}

// Embed encodes one text into a vector
func (e *OpenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{normalized},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	return resp.Data[0].Embedding, nil
}

package openai

import (
	"context"
	"fmt"

	"ai-insights-be/pkg/embedding"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Provider embeds text with the OpenAI embeddings endpoint.
type Provider struct {
	client openai.Client
	model  string
}

var _ embedding.EmbeddingProvider = &Provider{}

func NewProvider(apiKey, baseURL, model string) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	return &Provider{client: openai.NewClient(opts...), model: model}
}

func (p *Provider) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	res, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding failed: %w", err)
	}
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("empty embeddings from openai")
	}

	values := make([]float32, len(res.Data[0].Embedding))
	for i, v := range res.Data[0].Embedding {
		values[i] = float32(v)
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: values},
	}, nil
}

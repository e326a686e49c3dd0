package embed

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"

	"github.com/codeGROOVE-dev/personamatch/pkg/llm"
)

// OpenAI embeds text with an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an embedder for model. baseURL may be empty.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	client := openai.NewClient(llm.ClientOptions(apiKey, baseURL)...)
	return &OpenAI{client: &client, model: model}
}

// Embed implements Embedder.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Data[0].Embedding, nil
}

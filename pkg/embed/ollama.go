package embed

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/codeGROOVE-dev/personamatch/pkg/llm"
)

// Ollama embeds text with an Ollama server.
type Ollama struct {
	client *api.Client
	model  string
}

// NewOllama creates an embedder for model. An empty baseURL uses OLLAMA_HOST.
func NewOllama(baseURL, model string) (*Ollama, error) {
	client, err := llm.NewOllamaClient(baseURL)
	if err != nil {
		return nil, err
	}
	return &Ollama{client: client, model: model}, nil
}

// Embed implements Embedder.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float64, error) {
	res, err := o.client.Embed(ctx, &api.EmbedRequest{Model: o.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return widen(res.Embeddings[0]), nil
}

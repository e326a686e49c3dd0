package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Ollama is a Chatter backed by a local or remote Ollama server.
type Ollama struct {
	client      *api.Client
	model       string
	temperature float64
}

// NewOllama creates an Ollama chat backend. An empty base URL uses the environment
// (OLLAMA_HOST) or the default local address.
func NewOllama(model string, opts ...Option) (*Ollama, error) {
	cfg := newConfig(opts)
	client, err := NewOllamaClient(cfg.baseURL)
	if err != nil {
		return nil, err
	}
	return &Ollama{client: client, model: model, temperature: cfg.temperature}, nil
}

// NewOllamaClient builds an api.Client for baseURL, or from the environment when empty.
func NewOllamaClient(baseURL string) (*api.Client, error) {
	if baseURL == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		return client, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}
	return api.NewClient(u, &http.Client{Timeout: 5 * time.Minute}), nil
}

// Chat implements Chatter.
func (o *Ollama) Chat(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Content})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": o.temperature},
	}

	var out strings.Builder
	if err := o.client.Chat(ctx, req, func(cr api.ChatResponse) error {
		out.WriteString(cr.Message.Content)
		return nil
	}); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	if out.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return out.String(), nil
}

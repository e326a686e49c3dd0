// Package llm adapts chat-completion services to the text-transform and judge ports.
package llm

import (
	"context"
	"errors"
)

// Roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a backend answers with no content.
var ErrEmptyResponse = errors.New("empty response from model")

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// Chatter sends a conversation and returns the assistant's reply text.
type Chatter interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ChatFunc adapts a function to Chatter.
type ChatFunc func(ctx context.Context, messages []Message) (string, error)

// Chat calls f.
func (f ChatFunc) Chat(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

// Complete sends a single user prompt. It is the text-transform port.
func Complete(ctx context.Context, c Chatter, prompt string) (string, error) {
	return c.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

// Option configures a backend.
type Option func(*config)

type config struct {
	baseURL     string
	temperature float64
}

// WithBaseURL points the backend at a different endpoint.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = u }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *config) { c.temperature = t }
}

func newConfig(opts []Option) *config {
	cfg := &config{temperature: 0}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

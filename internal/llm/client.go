// Package llm is a small client for OpenAI-compatible chat completion
// endpoints, wrapped in a circuit breaker so a failing provider is skipped
// quickly instead of holding requests open.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces the assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
}

// ErrEmptyReply is returned when the provider answers without content.
var ErrEmptyReply = errors.New("llm: empty reply")

// Config configures a Client.
type Config struct {
	// BaseURL points at any OpenAI-compatible API root, e.g.
	// https://api.openai.com/v1 or a self-hosted gateway.
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

// Client calls POST {BaseURL}/chat/completions through go-openai.
type Client struct {
	cfg Config
	api *openai.Client
}

// NewClient returns a Client. A nil hc uses a client with cfg.Timeout.
func NewClient(cfg Config, hc *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = openai.GPT3Dot5Turbo
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = hc
	return &Client{cfg: cfg, api: openai.NewClientWithConfig(oc)}
}

// Complete implements Completer. Provider failures keep their cause, so
// callers can tell a deadline from an API error with errors.Is/As.
func (c *Client) Complete(ctx context.Context, msgs []Message) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(msgs)),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}

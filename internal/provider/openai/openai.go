// Package openai implements the model backend for OpenAI-compatible
// /chat/completions endpoints.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"conductor/internal/config"
	"conductor/internal/provider"
	"conductor/pkg/logger"
)

const name = "openai"

// Config holds backend configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Backend talks to an OpenAI-compatible API.
type Backend struct {
	model   string
	baseURL string
	client  *resty.Client
}

// New creates a backend.
func New(cfg Config) *Backend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &Backend{
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}
}

// Register registers the OpenAI-compatible backend factory.
func Register() {
	provider.Register(name, func(cfg *config.Config) (provider.Backend, error) {
		return New(Config{
			BaseURL: cfg.OpenAI.BaseURL,
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			Timeout: cfg.OpenAI.Timeout,
		}), nil
	})
}

// Name implements provider.Backend.
func (b *Backend) Name() string { return name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// ReasoningContent is returned by reasoning models on some compatible servers.
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// SendPrompt implements provider.Backend.
func (b *Backend) SendPrompt(ctx context.Context, prompt string) (provider.Reply, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:    b.model,
			Messages: []chatMessage{{Role: "user", Content: prompt}},
		}).
		SetResult(&chatResponse{}).
		SetError(&errorResponse{}).
		Post(b.baseURL + "/chat/completions")
	if err != nil {
		if ctx.Err() != nil {
			return provider.Reply{}, provider.FromTransport(name, ctx.Err())
		}
		return provider.Reply{}, provider.NewProviderError(provider.ErrCodeServiceUnavailable,
			fmt.Sprintf("cannot reach %s: %v", b.baseURL, err), name, true)
	}

	if resp.StatusCode() != http.StatusOK {
		msg := strings.TrimSpace(resp.String())
		if e, ok := resp.Error().(*errorResponse); ok && e.Error.Message != "" {
			msg = e.Error.Message
		}
		logger.Error().Int("status", resp.StatusCode()).Str("body", msg).Msg("OpenAI error response")
		return provider.Reply{}, provider.FromHTTPStatus(name, resp.StatusCode(), msg)
	}

	out, ok := resp.Result().(*chatResponse)
	if !ok || len(out.Choices) == 0 {
		return provider.Reply{}, provider.NewProviderError(provider.ErrCodeEmptyResponse,
			"no choices in response", name, true)
	}

	msg := out.Choices[0].Message
	reply := provider.SplitThinking(msg.Content)
	if rc := strings.TrimSpace(msg.ReasoningContent); rc != "" && reply.Thinking == "" {
		reply.Thinking = rc
	}
	if reply.Text == "" {
		return provider.Reply{}, provider.NewProviderError(provider.ErrCodeEmptyResponse,
			"model returned an empty reply", name, true)
	}
	return reply, nil
}

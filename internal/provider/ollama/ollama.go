package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"conductor/internal/provider"
	"conductor/pkg/logger"
)

const name = "ollama"

// Backend sends prompts to Ollama's /api/chat endpoint.
type Backend struct {
	endpoint   string
	model      string
	keepAlive  string
	think      bool
	numCtx     int
	httpClient *http.Client
}

// New creates an Ollama backend.
func New(cfg Config) *Backend {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.KeepAlive == "" {
		cfg.KeepAlive = DefaultKeepAlive
	}

	return &Backend{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      strings.TrimPrefix(cfg.Model, "ollama:"),
		keepAlive:  cfg.KeepAlive,
		think:      cfg.Think,
		numCtx:     cfg.NumCtx,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name implements provider.Backend.
func (b *Backend) Name() string {
	return name
}

// SendPrompt implements provider.Backend.
func (b *Backend) SendPrompt(ctx context.Context, prompt string) (provider.Reply, error) {
	req := chatRequest{
		Model:     b.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		Think:     b.think,
		KeepAlive: b.keepAlive,
	}
	if b.numCtx > 0 {
		req.Options = map[string]any{"num_ctx": b.numCtx}
	}
	logger.Debug().Str("model", req.Model).Int("prompt_len", len(prompt)).Msg("Ollama chat request")

	resp, err := b.doRequest(ctx, "/api/chat", req)
	if err != nil {
		return provider.Reply{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.Reply{}, provider.FromTransport(name, err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Ollama error response")
		return provider.Reply{}, b.handleErrorResponse(resp.StatusCode, body)
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		logger.Error().Err(err).Str("body", string(body)).Msg("Failed to parse Ollama response")
		return provider.Reply{}, provider.NewProviderError(provider.ErrCodeUnknown,
			"unreadable response from Ollama", name, false)
	}
	if out.Error != "" {
		return provider.Reply{}, b.handleErrorResponse(http.StatusInternalServerError, body)
	}
	logger.Debug().
		Int("prompt_tokens", out.PromptEvalCount).
		Int("reply_tokens", out.EvalCount).
		Dur("model_time", time.Duration(out.TotalDuration)).
		Msg("Ollama chat reply")

	reply := provider.SplitThinking(out.Message.Content)
	if t := strings.TrimSpace(out.Message.Thinking); t != "" {
		if reply.Thinking != "" {
			t = t + "\n\n" + reply.Thinking
		}
		reply.Thinking = t
	}
	if reply.Text == "" {
		return provider.Reply{}, provider.NewProviderError(provider.ErrCodeEmptyResponse,
			"model returned an empty reply", name, true)
	}
	return reply, nil
}

// doRequest sends an HTTP request to the Ollama API.
func (b *Backend) doRequest(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, provider.FromTransport(name, ctx.Err())
		}
		return nil, provider.NewProviderError(provider.ErrCodeServiceUnavailable,
			fmt.Sprintf("cannot reach Ollama at %s: %v", b.endpoint, err), name, true)
	}
	return resp, nil
}

// handleErrorResponse converts an error response to a ProviderError.
func (b *Backend) handleErrorResponse(statusCode int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var errResp errorBody
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		msg = errResp.Error
	}

	pe := provider.FromHTTPStatus(name, statusCode, msg)
	if statusCode == http.StatusNotFound {
		pe.Message = fmt.Sprintf("%s (run `ollama pull %s`)", msg, b.model)
	}
	return pe
}

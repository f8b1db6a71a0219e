// Package provider defines the model backend boundary: a prompt goes in,
// reply text (plus optional thinking text) comes out.
package provider

import (
	"context"
	"regexp"
	"strings"
	"time"

	"conductor/pkg/metrics"
)

// Reply is a backend answer.
type Reply struct {
	Text string `json:"text"`
	// Thinking is the reasoning side channel, when the backend exposes one.
	Thinking string `json:"thinking,omitempty"`
}

// Backend sends one prompt to a model.
type Backend interface {
	// Name returns the backend name.
	Name() string

	// SendPrompt sends prompt and returns the reply. Implementations
	// return *ProviderError for classified failures.
	SendPrompt(ctx context.Context, prompt string) (Reply, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc struct {
	BackendName string
	Fn          func(ctx context.Context, prompt string) (Reply, error)
}

// Name implements Backend.
func (f BackendFunc) Name() string { return f.BackendName }

// SendPrompt implements Backend.
func (f BackendFunc) SendPrompt(ctx context.Context, prompt string) (Reply, error) {
	return f.Fn(ctx, prompt)
}

var thinkTagRe = regexp.MustCompile(`(?is)<think(?:ing)?>(.*?)</think(?:ing)?>`)

// SplitThinking moves inline <think>...</think> sections out of text.
func SplitThinking(text string) Reply {
	var thoughts []string
	visible := thinkTagRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := thinkTagRe.FindStringSubmatch(m)
		if t := strings.TrimSpace(sub[1]); t != "" {
			thoughts = append(thoughts, t)
		}
		return ""
	})
	return Reply{
		Text:     strings.TrimSpace(visible),
		Thinking: strings.Join(thoughts, "\n\n"),
	}
}

type instrumented struct {
	Backend
}

// Instrument records request counts and latency for b.
func Instrument(b Backend) Backend {
	return instrumented{Backend: b}
}

func (i instrumented) SendPrompt(ctx context.Context, prompt string) (Reply, error) {
	start := time.Now()
	reply, err := i.Backend.SendPrompt(ctx, prompt)
	metrics.ObserveModel(i.Backend.Name(), err, time.Since(start))
	return reply, err
}

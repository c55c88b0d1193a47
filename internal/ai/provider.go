// Package ai wraps the LLM backends used by the agent services behind a
// single Provider interface.
package ai

import (
	"context"
	"errors"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrUnavailable means the provider is not configured (usually a missing
// credential). Callers degrade instead of failing.
var ErrUnavailable = errors.New("ai: provider not configured")

// ErrEmptyReply is returned when a backend answers without any text.
var ErrEmptyReply = errors.New("ai: empty reply")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Generate sends a single prompt as one user message and returns the trimmed
// completion.
func Generate(ctx context.Context, p Provider, prompt string) (string, error) {
	if p == nil {
		return "", ErrUnavailable
	}
	out, err := p.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyReply
	}
	return out, nil
}

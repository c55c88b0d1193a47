// Package session keeps chat transcripts keyed by session id. Sessions expire
// after a period of inactivity and only the most recent messages are handed
// back for prompt building.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/suPer8Hu/agent-services/internal/common"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Session struct {
	ID           string
	Messages     []Message
	CreatedAt    time.Time
	LastActivity time.Time
	Metadata     map[string]any
}

// Store is implemented by the in-memory and redis backends.
type Store interface {
	// GetOrCreate touches a known session, or creates one. An unknown non-empty
	// id is kept as the new session's id; an empty id gets a freshly minted one.
	GetOrCreate(ctx context.Context, sessionID string, metadata map[string]any) (string, error)
	// AddMessage appends to the transcript, creating the session if needed.
	AddMessage(ctx context.Context, sessionID, role, content string) error
	// RecentMessages returns the last N messages, oldest first.
	RecentMessages(ctx context.Context, sessionID string) ([]Message, error)
	Clear(ctx context.Context, sessionID string) (bool, error)
	// SweepExpired removes sessions idle for longer than the TTL.
	SweepExpired(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
}

type options struct {
	now   func() time.Time
	newID func() string
}

type Option func(*options)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDFunc overrides session id minting.
func WithIDFunc(f func() string) Option {
	return func(o *options) { o.newID = f }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.newID == nil {
		now := o.now
		o.newID = func() string { return NewSessionID(now()) }
	}
	return o
}

// NewSessionID mints a ULID. If the entropy source fails it falls back to a
// millisecond timestamp id.
func NewSessionID(now time.Time) string {
	if id, err := common.NewULID(); err == nil {
		return id
	}
	return fmt.Sprintf("session_%d", now.UnixMilli())
}

func copyMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func lastN(msgs []Message, n int) []Message {
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

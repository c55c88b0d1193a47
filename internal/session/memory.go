package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/suPer8Hu/agent-services/internal/observability"
)

// MemoryStore keeps sessions in a map guarded by a single mutex.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	ttl         time.Duration
	maxMessages int
	opts        options
}

func NewMemoryStore(ttl time.Duration, maxMessages int, opts ...Option) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*Session),
		ttl:         ttl,
		maxMessages: maxMessages,
		opts:        buildOptions(opts),
	}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, sessionID string, metadata map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(ctx, sessionID, metadata), nil
}

func (s *MemoryStore) getOrCreateLocked(ctx context.Context, sessionID string, metadata map[string]any) string {
	now := s.opts.now()
	if sess, ok := s.sessions[sessionID]; ok && sessionID != "" {
		sess.LastActivity = now
		return sessionID
	}

	id := sessionID
	if id == "" {
		id = s.opts.newID()
	}
	s.sessions[id] = &Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		Metadata:     copyMetadata(metadata),
	}
	observability.LoggerFromContext(ctx).Info("session created", slog.String("session_id", id))
	return id
}

func (s *MemoryStore) AddMessage(ctx context.Context, sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok || sessionID == "" {
		sessionID = s.getOrCreateLocked(ctx, sessionID, nil)
	}
	sess := s.sessions[sessionID]
	now := s.opts.now()
	sess.Messages = append(sess.Messages, Message{Role: role, Content: content, Timestamp: now})
	sess.LastActivity = now
	return nil
}

func (s *MemoryStore) RecentMessages(ctx context.Context, sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return []Message{}, nil
	}
	return lastN(sess.Messages, s.maxMessages), nil
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	observability.LoggerFromContext(ctx).Info("session cleared", slog.String("session_id", sessionID))
	return true, nil
}

func (s *MemoryStore) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		observability.LoggerFromContext(ctx).Info("expired sessions removed", slog.Int("count", removed))
	}
	return removed, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

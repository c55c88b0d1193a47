// Package chat implements the Babel Bot conversation flow on top of a
// session.Store and an LLM provider.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/suPer8Hu/agent-services/internal/ai"
	"github.com/suPer8Hu/agent-services/internal/observability"
	"github.com/suPer8Hu/agent-services/internal/session"
)

const (
	UnavailableReply = "I'm sorry, I'm not available right now. Please check the configuration."
	ErrorReply       = "I'm sorry, I encountered an error processing your message. Please try again."
)

// ErrSessionNotFound is returned by Clear for unknown ids.
var ErrSessionNotFound = errors.New("chat: session not found")

type Service struct {
	store    session.Store
	provider ai.Provider
}

// NewService wires the store and provider. A nil provider puts the service in
// degraded mode: every reply is UnavailableReply.
func NewService(store session.Store, provider ai.Provider) *Service {
	return &Service{store: store, provider: provider}
}

func (s *Service) Available() bool { return s.provider != nil }

type Reply struct {
	SessionID       string `json:"session_id"`
	Message         string `json:"message"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
}

// turn is the state shared by the blocking and streaming reply paths.
type turn struct {
	sessionID string
	prompt    string
	lang      string
}

// begin resolves the session, snapshots the history, records the user
// message and builds the prompt.
func (s *Service) begin(ctx context.Context, sessionID, message string, reqCtx map[string]any) (turn, error) {
	id, err := s.store.GetOrCreate(ctx, sessionID, reqCtx)
	if err != nil {
		return turn{}, fmt.Errorf("get or create session: %w", err)
	}
	history, err := s.store.RecentMessages(ctx, id)
	if err != nil {
		return turn{}, fmt.Errorf("load history: %w", err)
	}
	if err := s.store.AddMessage(ctx, id, session.RoleUser, message); err != nil {
		return turn{}, fmt.Errorf("store user message: %w", err)
	}
	lang := DetectReplyLanguage(reqCtx, history)
	return turn{sessionID: id, prompt: BuildPrompt(message, history, reqCtx, lang), lang: lang}, nil
}

// Reply runs one chat turn. LLM problems are answered with a fixed apology;
// only session store failures return an error.
func (s *Service) Reply(ctx context.Context, sessionID, message string, reqCtx map[string]any) (Reply, error) {
	start := time.Now()
	log := observability.LoggerFromContext(ctx)

	t, err := s.begin(ctx, sessionID, message, reqCtx)
	if err != nil {
		return Reply{}, err
	}

	text := UnavailableReply
	if s.provider != nil {
		out, err := ai.Generate(ctx, s.provider, t.prompt)
		if err != nil {
			log.Error("chat llm call failed", slog.String("session_id", t.sessionID), slog.Any("err", err))
			text = ErrorReply
		} else {
			text = out
			log.Info("chat reply generated", slog.String("session_id", t.sessionID), slog.String("language", t.lang))
		}
	}

	if err := s.store.AddMessage(ctx, t.sessionID, session.RoleAssistant, text); err != nil {
		return Reply{}, fmt.Errorf("store assistant message: %w", err)
	}
	return Reply{SessionID: t.sessionID, Message: text, ExecutionTimeMS: time.Since(start).Milliseconds()}, nil
}

// Stream is a chat turn in progress. Chunks is closed when the reply is
// complete; Done then yields the final Reply exactly once.
type Stream struct {
	SessionID string
	Chunks    <-chan string
	Done      <-chan Reply
	Errs      <-chan error
}

// ReplyStream is the streaming variant of Reply. Failures after the stream
// started are reported as the apology text, like Reply does.
func (s *Service) ReplyStream(ctx context.Context, sessionID, message string, reqCtx map[string]any) (*Stream, error) {
	start := time.Now()
	log := observability.LoggerFromContext(ctx)

	t, err := s.begin(ctx, sessionID, message, reqCtx)
	if err != nil {
		return nil, err
	}

	out := make(chan string, 16)
	done := make(chan Reply, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(done)

		var b strings.Builder
		emit := func(c string) {
			b.WriteString(c)
			select {
			case out <- c:
			case <-ctx.Done():
			}
		}

		if s.provider == nil {
			emit(UnavailableReply)
		} else {
			chunks, perrs := ai.GenerateStream(ctx, s.provider, t.prompt)
			for c := range chunks {
				emit(c)
			}
			if err := <-perrs; err != nil {
				log.Error("chat stream failed", slog.String("session_id", t.sessionID), slog.Any("err", err))
				if b.Len() == 0 {
					emit(ErrorReply)
				}
			}
		}
		close(out)

		text := strings.TrimSpace(b.String())
		if text == "" {
			text = ErrorReply
		}
		if err := s.store.AddMessage(context.WithoutCancel(ctx), t.sessionID, session.RoleAssistant, text); err != nil {
			errs <- fmt.Errorf("store assistant message: %w", err)
			return
		}
		done <- Reply{SessionID: t.sessionID, Message: text, ExecutionTimeMS: time.Since(start).Milliseconds()}
	}()

	return &Stream{SessionID: t.sessionID, Chunks: out, Done: done, Errs: errs}, nil
}

// Clear deletes a session.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	ok, err := s.store.Clear(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

type Health struct {
	Status          string `json:"status"`
	Service         string `json:"service"`
	GeminiAvailable bool   `json:"gemini_available"`
	ActiveSessions  int    `json:"active_sessions"`
}

func (s *Service) Health(ctx context.Context) (Health, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return Health{}, err
	}
	h := Health{Status: "healthy", Service: "babelbot-agent", GeminiAvailable: s.Available(), ActiveSessions: n}
	if !h.GeminiAvailable {
		h.Status = "degraded"
	}
	return h, nil
}

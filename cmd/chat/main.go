package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/suPer8Hu/agent-services/internal/ai"
	"github.com/suPer8Hu/agent-services/internal/chat"
	"github.com/suPer8Hu/agent-services/internal/config"
	"github.com/suPer8Hu/agent-services/internal/httpapi"
	"github.com/suPer8Hu/agent-services/internal/httpapi/handlers"
	"github.com/suPer8Hu/agent-services/internal/observability"
	"github.com/suPer8Hu/agent-services/internal/session"
	"github.com/suPer8Hu/agent-services/internal/store/redisstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", slog.Any("err", err))
		os.Exit(1)
	}
	log := observability.Setup(os.Stdout, cfg.LogLevel, "babelbot-agent")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := newSessionStore(ctx, cfg)
	if err != nil {
		log.Error("session store", slog.Any("err", err))
		os.Exit(1)
	}
	defer cleanup()

	provider, err := ai.NewDefaultRegistry(cfg.AISettings()).Get(ctx, cfg.AIProvider, "")
	switch {
	case errors.Is(err, ai.ErrUnavailable):
		log.Warn("llm provider not configured, running degraded", slog.String("provider", cfg.AIProvider))
		provider = nil
	case err != nil:
		log.Error("llm provider", slog.Any("err", err))
		os.Exit(1)
	}

	go session.RunSweeper(ctx, store, cfg.SessionSweepInterval())

	svc := chat.NewService(store, provider)
	r := httpapi.NewChatRouter(handlers.NewChatHandler(svc), cfg)

	if err := httpapi.Serve(ctx, cfg.ChatAddr(), r); err != nil {
		log.Error("server", slog.Any("err", err))
		os.Exit(1)
	}
}

func newSessionStore(ctx context.Context, cfg config.Config) (session.Store, func(), error) {
	switch strings.ToLower(cfg.SessionBackend) {
	case "redis":
		rdb, err := redisstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		st := session.NewRedisStore(rdb, cfg.RedisKeyPrefix, cfg.ConversationTTL(), cfg.MaxContextMessages)
		return st, func() { _ = rdb.Close() }, nil
	default:
		return session.NewMemoryStore(cfg.ConversationTTL(), cfg.MaxContextMessages), func() {}, nil
	}
}

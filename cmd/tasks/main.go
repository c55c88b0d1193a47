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
	"github.com/suPer8Hu/agent-services/internal/config"
	"github.com/suPer8Hu/agent-services/internal/db"
	"github.com/suPer8Hu/agent-services/internal/httpapi"
	"github.com/suPer8Hu/agent-services/internal/httpapi/handlers"
	"github.com/suPer8Hu/agent-services/internal/observability"
	"github.com/suPer8Hu/agent-services/internal/refcache"
	"github.com/suPer8Hu/agent-services/internal/reference"
	"github.com/suPer8Hu/agent-services/internal/store/rabbitmq"
	"github.com/suPer8Hu/agent-services/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", slog.Any("err", err))
		os.Exit(1)
	}
	log := observability.Setup(os.Stdout, cfg.LogLevel, "task-management-agent")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []tasks.Option

	var repo *reference.Repo
	var records *tasks.RecordRepo
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		gdb, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Error("database", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() { _ = db.Close(gdb) }()
		repo = reference.NewRepo(gdb)
		opts = append(opts, tasks.WithUserLookup(repo))

		records = tasks.NewRecordRepo(gdb)
		if err := records.AutoMigrate(); err != nil {
			log.Error("migrate", slog.Any("err", err))
			os.Exit(1)
		}
	}

	var fetcher refcache.Fetcher = refcache.NewAPIFetcher(cfg.BackendAPIURL, cfg.DataFetchTimeout())
	if strings.EqualFold(cfg.ReferenceSource, "db") {
		if repo == nil {
			log.Error("REFERENCE_SOURCE=db requires DATABASE_URL")
			os.Exit(1)
		}
		fetcher = refcache.NewRepoFetcher(repo)
	}
	cache := refcache.New(fetcher, cfg.DataCacheTTL())
	if _, err := cache.Get(ctx, true); err != nil {
		log.Warn("initial reference fetch failed", slog.Any("err", err))
	}
	go cache.Poll(ctx, cfg.DataPollInterval())

	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Error("rabbitmq", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() { _ = pub.Close() }()
		opts = append(opts, tasks.WithPublisher(pub))
	}

	provider, err := ai.NewDefaultRegistry(cfg.AISettings()).Get(ctx, cfg.AIProvider, "")
	switch {
	case errors.Is(err, ai.ErrUnavailable):
		log.Warn("llm provider not configured, extractions fall back", slog.String("provider", cfg.AIProvider))
		provider = nil
	case err != nil:
		log.Error("llm provider", slog.Any("err", err))
		os.Exit(1)
	}

	svc := tasks.NewService(provider, cache, cfg.MinConfidenceScore, cfg.ClarificationThreshold, opts...)
	h := handlers.NewTaskHandler(svc, cache)
	if records != nil {
		h.Records = records
	}
	r := httpapi.NewTaskRouter(h, cfg)

	if err := httpapi.Serve(ctx, cfg.TaskAddr(), r); err != nil {
		log.Error("server", slog.Any("err", err))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/agent-services/internal/config"
	"github.com/suPer8Hu/agent-services/internal/db"
	"github.com/suPer8Hu/agent-services/internal/observability"
	"github.com/suPer8Hu/agent-services/internal/store/rabbitmq"
	"github.com/suPer8Hu/agent-services/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", slog.Any("err", err))
		os.Exit(1)
	}
	log := observability.Setup(os.Stdout, cfg.LogLevel, "task-extraction-worker")

	if cfg.RabbitURL == "" {
		log.Error("RABBIT_URL is required")
		os.Exit(1)
	}

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Error("database", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close(gdb) }()

	repo := tasks.NewRecordRepo(gdb)
	if err := repo.AutoMigrate(); err != nil {
		log.Error("migrate", slog.Any("err", err))
		os.Exit(1)
	}

	concurrency := cfg.WorkerConcurrency
	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, concurrency)
	if err != nil {
		log.Error("rabbitmq", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() { _ = consumer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker started", slog.String("queue", cfg.RabbitQueue), slog.Int("concurrency", concurrency))

	err = consumer.Run(ctx, concurrency, func(ctx context.Context, ev tasks.ExtractionEvent) error {
		start := time.Now()
		rec, err := repo.Save(ctx, ev)
		if err != nil {
			return err
		}
		if cost := time.Since(start); cost > 500*time.Millisecond {
			log.Warn("slow extraction save", slog.Uint64("id", rec.ID), slog.Duration("cost", cost))
		}
		return nil
	})
	if err != nil {
		log.Error("worker", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("worker stopped")
}

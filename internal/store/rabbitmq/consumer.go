package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/agent-services/internal/observability"
	"github.com/suPer8Hu/agent-services/internal/tasks"
)

const retryHeader = "x-retry-count"

// HandlerFunc processes one extraction event. A returned error schedules a
// retry until the retry budget is spent.
type HandlerFunc func(ctx context.Context, ev tasks.ExtractionEvent) error

type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	MaxRetries int
	RetryDelay time.Duration

	// republish sends a message to the retry queue.
	republish func(ctx context.Context, msg amqp.Publishing) error
}

// NewConsumer connects and limits unacked deliveries to prefetch.
func NewConsumer(url, queue string, prefetch int) (*Consumer, error) {
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("qos: %w", err)
	}
	c := &Consumer{conn: conn, ch: ch, queue: queue, MaxRetries: 3, RetryDelay: 5 * time.Second}
	c.republish = func(ctx context.Context, msg amqp.Publishing) error {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return c.ch.PublishWithContext(cctx, "", retryQueue(c.queue), false, false, msg)
	}
	return c, nil
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Run dispatches deliveries to concurrency workers until ctx is done, then
// drains the workers.
func (c *Consumer) Run(ctx context.Context, concurrency int, handle HandlerFunc) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	log := observability.Logger().With(slog.String("queue", c.queue))
	log.Info("worker started", slog.Int("concurrency", concurrency))

	jobs := make(chan amqp.Delivery, concurrency*2)
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.process(ctx, workerID, d, handle)
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			jobs <- d
		}
	}
}

func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// process acks handled events, retries failed ones through the retry queue
// and dead-letters undecodable or exhausted ones. Deliveries seen after ctx is
// done go back to the queue untouched.
func (c *Consumer) process(ctx context.Context, workerID int, d amqp.Delivery, handle HandlerFunc) {
	log := observability.Logger().With(slog.Int("worker", workerID))

	if ctx.Err() != nil {
		requeue(log, d)
		return
	}

	var ev tasks.ExtractionEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		log.Error("bad message", slog.Any("err", err))
		_ = d.Nack(false, false)
		return
	}
	if err := ev.Validate(); err != nil {
		log.Error("invalid event", slog.Any("err", err))
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	err := handle(ctx, ev)
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Error("ack failed", slog.Any("err", err))
		}
		return
	}

	if ctx.Err() != nil {
		log.Warn("event handling interrupted by shutdown", slog.Any("err", err))
		requeue(log, d)
		return
	}

	attempt := retryCount(d.Headers) + 1
	log.Error("event handling failed",
		slog.String("user_id", ev.UserID),
		slog.Int("attempt", attempt),
		slog.Duration("cost", time.Since(start)),
		slog.Any("err", err),
	)
	if attempt > c.MaxRetries || c.republish == nil {
		_ = d.Nack(false, false)
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryHeader] = int32(attempt)
	retry := amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Type:         d.Type,
		Headers:      headers,
		Body:         d.Body,
		Timestamp:    d.Timestamp,
		Expiration:   strconv.FormatInt(c.RetryDelay.Milliseconds(), 10),
	}
	if err := c.republish(ctx, retry); err != nil {
		log.Error("retry publish failed", slog.Any("err", err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func requeue(log *slog.Logger, d amqp.Delivery) {
	if err := d.Nack(false, true); err != nil {
		log.Error("requeue failed", slog.Any("err", err))
	}
}

package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T, ttl time.Duration, window int, opts ...Option) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "test", ttl, window, opts...), mr
}

func TestRedisStore_AddMessageCreatesSession(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t, time.Hour, 20)

	if err := s.AddMessage(ctx, "s1", RoleUser, "hello"); err != nil {
		t.Fatalf("add message: %v", err)
	}
	msgs, err := s.RecentMessages(ctx, "s1")
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != RoleUser || msgs[0].Content != "hello" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("expected 1 session, got %d", n)
	}
}

func TestRedisStore_RecentMessagesReturnsLastN(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t, time.Hour, 3)

	for i := 0; i < 7; i++ {
		if err := s.AddMessage(ctx, "s1", RoleUser, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("add message: %v", err)
		}
	}
	msgs, err := s.RecentMessages(ctx, "s1")
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"m4", "m5", "m6"} {
		if msgs[i].Content != want {
			t.Fatalf("message %d = %q, want %q", i, msgs[i].Content, want)
		}
	}
}

func TestRedisStore_GetOrCreateKnownIDIsStable(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t, time.Hour, 20, WithIDFunc(func() string { return "minted" }))

	id, err := s.GetOrCreate(ctx, "", map[string]any{"project": "tower"})
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if id != "minted" {
		t.Fatalf("expected minted id, got %q", id)
	}
	_ = s.AddMessage(ctx, id, RoleUser, "hi")

	again, err := s.GetOrCreate(ctx, id, map[string]any{"project": "other"})
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if again != id {
		t.Fatalf("expected %q, got %q", id, again)
	}
	if msgs, _ := s.RecentMessages(ctx, id); len(msgs) != 1 {
		t.Fatalf("transcript changed: %d messages", len(msgs))
	}
	if got := mr.HGet("test:session:minted", "metadata"); got != `{"project":"tower"}` {
		t.Fatalf("metadata must be immutable, got %s", got)
	}
}

func TestRedisStore_ClearAndCount(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t, time.Hour, 20)
	_ = s.AddMessage(ctx, "a", RoleUser, "x")
	_ = s.AddMessage(ctx, "b", RoleUser, "y")

	ok, err := s.Clear(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("expected clear to succeed, ok=%v err=%v", ok, err)
	}
	ok, _ = s.Clear(ctx, "a")
	if ok {
		t.Fatalf("expected second clear to report missing")
	}
	if mr.Exists("test:session:a:messages") {
		t.Fatalf("messages key should be deleted")
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("expected 1 session, got %d", n)
	}
}

func TestRedisStore_SweepExpiredRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s, mr := newTestRedisStore(t, 10*time.Minute, 20, WithClock(clock.Now))

	_ = s.AddMessage(ctx, "old", RoleUser, "a")
	clock.Advance(5 * time.Minute)
	_ = s.AddMessage(ctx, "boundary", RoleUser, "b")
	clock.Advance(time.Minute)
	_ = s.AddMessage(ctx, "fresh", RoleUser, "c")
	clock.Advance(9 * time.Minute)

	removed, err := s.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if mr.Exists("test:session:old") || mr.Exists("test:session:old:messages") {
		t.Fatalf("expected old session keys to be deleted")
	}
	if msgs, _ := s.RecentMessages(ctx, "fresh"); len(msgs) != 1 {
		t.Fatalf("fresh session must be untouched")
	}
	if n, _ := s.Count(ctx); n != 2 {
		t.Fatalf("expected 2 sessions left, got %d", n)
	}
}

func TestRedisStore_GetOrCreateAfterSweepKeepsMetadata(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s, mr := newTestRedisStore(t, time.Minute, 20, WithClock(clock))

	if _, err := s.GetOrCreate(ctx, "s1", map[string]any{"project": "tower"}); err != nil {
		t.Fatalf("get or create: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if n, err := s.SweepExpired(ctx); err != nil || n != 1 {
		t.Fatalf("sweep: n=%d err=%v", n, err)
	}

	id, err := s.GetOrCreate(ctx, "s1", map[string]any{"project": "bridge"})
	if err != nil || id != "s1" {
		t.Fatalf("get or create: id=%q err=%v", id, err)
	}
	if got := mr.HGet("test:session:s1", "metadata"); got != `{"project":"bridge"}` {
		t.Fatalf("recreated session lost metadata: %q", got)
	}
	if score, _ := mr.ZScore("test:sessions", "s1"); score != float64(now.UnixMilli()) {
		t.Fatalf("unexpected activity score %v", score)
	}
}

func TestRedisStore_GetOrCreateTouchesActivity(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s, mr := newTestRedisStore(t, time.Hour, 20, WithClock(func() time.Time { return now }))

	if _, err := s.GetOrCreate(ctx, "s1", nil); err != nil {
		t.Fatalf("get or create: %v", err)
	}
	now = now.Add(10 * time.Minute)
	if _, err := s.GetOrCreate(ctx, "s1", nil); err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if score, _ := mr.ZScore("test:sessions", "s1"); score != float64(now.UnixMilli()) {
		t.Fatalf("activity not refreshed: %v", score)
	}
}

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/agent-services/internal/observability"
)

// RedisStore keeps sessions in redis so several chat processes can share them.
//
// Layout under the key prefix:
//
//	<prefix>:sessions              ZSET member=id score=last activity (unix ms)
//	<prefix>:session:<id>          HASH created_at, metadata (json)
//	<prefix>:session:<id>:messages LIST of json messages
type RedisStore struct {
	rdb         *redis.Client
	prefix      string
	ttl         time.Duration
	maxMessages int
	opts        options
}

// sweepScript removes every session whose score is below ARGV[1] and returns
// how many were removed. Running it server side keeps the range read and the
// deletes atomic with respect to concurrent touches.
var sweepScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
for _, id in ipairs(ids) do
	redis.call('ZREM', KEYS[1], id)
	redis.call('DEL', ARGV[2] .. id, ARGV[2] .. id .. ':messages')
end
return #ids
`)

// touchScript bumps the activity score of ARGV[1] only if it is still
// indexed, returning 1 when touched and 0 when the session is gone.
var touchScript = redis.NewScript(`
if not redis.call('ZSCORE', KEYS[1], ARGV[1]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
return 1
`)

func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration, maxMessages int, opts ...Option) *RedisStore {
	if prefix == "" {
		prefix = "babelbot"
	}
	return &RedisStore{
		rdb:         rdb,
		prefix:      prefix,
		ttl:         ttl,
		maxMessages: maxMessages,
		opts:        buildOptions(opts),
	}
}

func (s *RedisStore) indexKey() string { return s.prefix + ":sessions" }

func (s *RedisStore) sessionPrefix() string { return s.prefix + ":session:" }

func (s *RedisStore) metaKey(id string) string { return s.sessionPrefix() + id }

func (s *RedisStore) messagesKey(id string) string { return s.sessionPrefix() + id + ":messages" }

func (s *RedisStore) GetOrCreate(ctx context.Context, sessionID string, metadata map[string]any) (string, error) {
	now := s.opts.now()
	if sessionID != "" {
		touched, err := touchScript.Run(ctx, s.rdb,
			[]string{s.indexKey()},
			sessionID,
			strconv.FormatInt(now.UnixMilli(), 10),
		).Int()
		if err != nil {
			return "", fmt.Errorf("touch session: %w", err)
		}
		if touched == 1 {
			return sessionID, nil
		}
	}

	id := sessionID
	if id == "" {
		id = s.opts.newID()
	}
	if err := s.create(ctx, id, metadata, now); err != nil {
		return "", err
	}
	observability.LoggerFromContext(ctx).Info("session created", slog.String("session_id", id), slog.String("backend", "redis"))
	return id, nil
}

// create writes the session hash only if absent, so metadata stays immutable.
func (s *RedisStore) create(ctx context.Context, id string, metadata map[string]any, now time.Time) error {
	meta, err := json.Marshal(copyMetadata(metadata))
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSetNX(ctx, s.metaKey(id), "created_at", now.UnixMilli())
		p.HSetNX(ctx, s.metaKey(id), "metadata", string(meta))
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: score(now), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *RedisStore) AddMessage(ctx context.Context, sessionID, role, content string) error {
	if sessionID == "" {
		id, err := s.GetOrCreate(ctx, "", nil)
		if err != nil {
			return err
		}
		sessionID = id
	}

	now := s.opts.now()
	b, err := json.Marshal(Message{Role: role, Content: content, Timestamp: now})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSetNX(ctx, s.metaKey(sessionID), "created_at", now.UnixMilli())
		p.HSetNX(ctx, s.metaKey(sessionID), "metadata", "{}")
		p.RPush(ctx, s.messagesKey(sessionID), b)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: score(now), Member: sessionID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *RedisStore) RecentMessages(ctx context.Context, sessionID string) ([]Message, error) {
	start := int64(0)
	if s.maxMessages > 0 {
		start = -int64(s.maxMessages)
	}
	raw, err := s.rdb.LRange(ctx, s.messagesKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]Message, 0, len(raw))
	for _, r := range raw {
		var m Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		removed = p.ZRem(ctx, s.indexKey(), sessionID)
		p.Del(ctx, s.metaKey(sessionID), s.messagesKey(sessionID))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("clear session: %w", err)
	}
	ok := removed.Val() > 0
	if ok {
		observability.LoggerFromContext(ctx).Info("session cleared", slog.String("session_id", sessionID), slog.String("backend", "redis"))
	}
	return ok, nil
}

func (s *RedisStore) SweepExpired(ctx context.Context) (int, error) {
	cutoff := s.opts.now().Add(-s.ttl)
	n, err := sweepScript.Run(ctx, s.rdb,
		[]string{s.indexKey()},
		strconv.FormatInt(cutoff.UnixMilli(), 10),
		s.sessionPrefix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if n > 0 {
		observability.LoggerFromContext(ctx).Info("expired sessions removed", slog.Int("count", n), slog.String("backend", "redis"))
	}
	return n, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.rdb.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return int(n), nil
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis. Metadata lives in a string key,
// history in a list; both share one sliding TTL while the session is draft.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// appendScript checks session existence and appends in one atomic step so a
// concurrent expiry cannot leave a history list without its metadata.
var appendScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("RPUSH", KEYS[2], ARGV[1])
if tonumber(ARGV[2]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	redis.call("PEXPIRE", KEYS[2], ARGV[2])
end
return 1
`)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client exposes the underlying Redis client so other components can share
// the connection pool.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Create writes draft metadata under the sliding TTL and returns the new key.
func (s *RedisStore) Create(ctx context.Context, ownerID string, storyID int64) (string, error) {
	key := NewKey(ownerID, storyID)
	meta := Meta{OwnerID: ownerID, StoryID: storyID, Status: StatusDraft}
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal session metadata: %w", err)
	}

	if err := s.client.Set(ctx, metaKey(key), raw, s.ttl).Err(); err != nil {
		return "", s.wrap("create session", err)
	}
	return key, nil
}

// Append adds one entry and refreshes both TTLs.
func (s *RedisStore) Append(ctx context.Context, key string, role Role, text string) error {
	ok, err := appendScript.Run(ctx, s.client,
		[]string{metaKey(key), histKey(key)},
		encodeEntry(role, text), s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return s.wrap("append history", err)
	}
	if ok == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// History returns the ordered log. It does not refresh the TTL.
func (s *RedisStore) History(ctx context.Context, key string) ([]Entry, error) {
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrSessionNotFound
	}

	raw, err := s.client.LRange(ctx, histKey(key), 0, -1).Result()
	if err != nil {
		return nil, s.wrap("read history", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		entries = append(entries, decodeEntry(item))
	}
	return entries, nil
}

// MarkDone persists metadata and history indefinitely and flips the status.
func (s *RedisStore) MarkDone(ctx context.Context, key string) error {
	meta, err := s.Meta(ctx, key)
	if err != nil {
		return err
	}
	meta.Status = StatusDone

	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal session metadata: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, metaKey(key), raw, 0)
	pipe.Persist(ctx, histKey(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return s.wrap("mark session done", err)
	}
	return nil
}

// Exists reports whether the session metadata is still present.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, metaKey(key)).Result()
	if err != nil {
		return false, s.wrap("check session", err)
	}
	return n > 0, nil
}

// Meta returns session metadata.
func (s *RedisStore) Meta(ctx context.Context, key string) (Meta, error) {
	raw, err := s.client.Get(ctx, metaKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return Meta{}, ErrSessionNotFound
	}
	if err != nil {
		return Meta{}, s.wrap("read session metadata", err)
	}

	var meta Meta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return Meta{}, fmt.Errorf("unmarshal session metadata: %w", err)
	}
	return meta, nil
}

func (s *RedisStore) wrap(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}

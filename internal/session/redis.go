package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "bta:session:"

type RedisOptions struct {
	TTL time.Duration
	// Prefix namespaces keys. Defaults to "bta:session:".
	Prefix string
}

// RedisStore keeps states as JSON values whose TTL is refreshed on every
// save.
type RedisStore struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, opts RedisOptions) *RedisStore {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 120 * time.Minute
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = keyPrefix
	}
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: prefix}
}

// DialRedis parses a redis:// URL and checks the server answers.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (State, bool, error) {
	data, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("redis get session: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false, fmt.Errorf("decode session: %w", err)
	}
	return st, true, nil
}

func (s *RedisStore) Save(ctx context.Context, st State) error {
	st.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(st.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Open returns a RedisStore when redisURL is set and a MemoryStore otherwise.
// The returned close function releases the Redis connection.
func Open(ctx context.Context, redisURL string, ttl time.Duration) (Store, func() error, error) {
	if redisURL == "" {
		return NewMemoryStore(Options{TTL: ttl}), func() error { return nil }, nil
	}
	rdb, err := DialRedis(ctx, redisURL)
	if err != nil {
		return nil, nil, err
	}
	return NewRedisStore(rdb, RedisOptions{TTL: ttl}), rdb.Close, nil
}

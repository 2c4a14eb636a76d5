package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces the seen-state keys
const DefaultRedisKeyPrefix = "course-watcher:"

// RedisSeenStore keeps seen IDs in a Redis set and last_checked in a string key.
// IDs are only ever added.
type RedisSeenStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSeenStore connects to redisURL and verifies the connection
func NewRedisSeenStore(ctx context.Context, redisURL, prefix string) (*RedisSeenStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 2
	opt.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return newRedisSeenStore(client, prefix), nil
}

func newRedisSeenStore(client *redis.Client, prefix string) *RedisSeenStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisSeenStore{client: client, prefix: prefix}
}

func (r *RedisSeenStore) idsKey() string {
	return r.prefix + "seen_ids"
}

func (r *RedisSeenStore) lastCheckedKey() string {
	return r.prefix + "last_checked"
}

// Load reads the seen state. Unlike the file store, connection failures are returned.
func (r *RedisSeenStore) Load(ctx context.Context) (*SeenState, error) {
	ids, err := r.client.SMembers(ctx, r.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("load seen ids: %w", err)
	}

	st := NewSeenState()
	for _, id := range ids {
		st.Add(id)
	}

	raw, err := r.client.Get(ctx, r.lastCheckedKey()).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("load last checked: %w", err)
	default:
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			st.LastChecked = &ts
		}
	}

	return st, nil
}

// Save adds every ID of st to the set and stores last_checked in one transaction
func (r *RedisSeenStore) Save(ctx context.Context, st *SeenState) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(st.SeenIDs) > 0 {
			members := make([]interface{}, len(st.SeenIDs))
			for i, id := range st.SeenIDs {
				members[i] = id
			}
			pipe.SAdd(ctx, r.idsKey(), members...)
		}
		if st.LastChecked != nil {
			pipe.Set(ctx, r.lastCheckedKey(), strconv.FormatInt(*st.LastChecked, 10), 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save seen state: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (r *RedisSeenStore) Close() error {
	return r.client.Close()
}

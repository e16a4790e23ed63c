package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alexjbarnes/puzzle-sync/internal/models"
	"github.com/redis/go-redis/v9"
)

// Redis is a Views implementation backed by Redis.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Views = (*Redis)(nil)

// NewRedis connects to the Redis server at url and verifies the
// connection. Cached views expire after ttl; zero keeps them until
// invalidated.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient wraps an existing client (for testing).
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Invalidate deletes every view key for (user, mode) in one command.
func (r *Redis) Invalidate(ctx context.Context, userID string, mode models.Mode) error {
	keys := make([]string, 0, len(AllViews))
	for _, v := range AllViews {
		keys = append(keys, viewKey(userID, mode, v))
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidating views: %w", err)
	}

	return nil
}

func (r *Redis) GetStats(ctx context.Context, userID string, mode models.Mode) (models.Stats, bool, error) {
	data, err := r.client.Get(ctx, viewKey(userID, mode, ViewUserStats)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Stats{}, false, nil
	}

	if err != nil {
		return models.Stats{}, false, fmt.Errorf("reading stats view: %w", err)
	}

	var st models.Stats
	if err := json.Unmarshal(data, &st); err != nil {
		return models.Stats{}, false, fmt.Errorf("decoding stats view: %w", err)
	}

	return st, true, nil
}

func (r *Redis) SetStats(ctx context.Context, st models.Stats) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding stats view: %w", err)
	}

	if err := r.client.Set(ctx, viewKey(st.UserID, st.Mode, ViewUserStats), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("writing stats view: %w", err)
	}

	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

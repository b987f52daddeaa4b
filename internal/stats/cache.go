package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keys of cached snapshots.
const (
	lastKeyPrefix = "stats:last:"
	MonthKey      = "stats:snapshot:month"
)

// StatusShare is one slice of the status distribution.
type StatusShare struct {
	Status  string  `json:"status"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Snapshot is everything the statistics view shows for one range.
type Snapshot struct {
	Range        Range         `json:"range"`
	Result       Result        `json:"result"`
	Charts       Charts        `json:"charts"`
	Distribution []StatusShare `json:"distribution"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// SnapshotStore persists snapshots between requests.
type SnapshotStore interface {
	SaveLast(ctx context.Context, uid string, s Snapshot) error
	Last(ctx context.Context, uid string) (*Snapshot, error)
	SaveMonth(ctx context.Context, s Snapshot) error
	Month(ctx context.Context) (*Snapshot, error)
}

// RedisCache stores snapshots as JSON strings with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache. ttl <= 0 keeps entries forever.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) put(ctx context.Context, key string, s Snapshot) error {
	buf, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.client.Set(ctx, key, buf, c.ttl).Err()
}

func (c *RedisCache) get(ctx context.Context, key string) (*Snapshot, error) {
	buf, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(buf, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return &s, nil
}

// SaveLast stores the last good snapshot of a user.
func (c *RedisCache) SaveLast(ctx context.Context, uid string, s Snapshot) error {
	return c.put(ctx, lastKeyPrefix+uid, s)
}

// Last returns the user's last good snapshot, or nil.
func (c *RedisCache) Last(ctx context.Context, uid string) (*Snapshot, error) {
	return c.get(ctx, lastKeyPrefix+uid)
}

// SaveMonth stores the shared current-month snapshot.
func (c *RedisCache) SaveMonth(ctx context.Context, s Snapshot) error {
	return c.put(ctx, MonthKey, s)
}

// Month returns the current-month snapshot, or nil.
func (c *RedisCache) Month(ctx context.Context) (*Snapshot, error) {
	return c.get(ctx, MonthKey)
}

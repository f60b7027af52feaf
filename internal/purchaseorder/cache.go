package purchaseorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("purchase order cache miss")

// DocumentCache keeps issued order records in redis. Records never change
// once written, so entries only expire by TTL. A nil client disables it.
type DocumentCache struct {
	client  *redis.Client
	ttl     time.Duration
	observe func(hit bool, took time.Duration)
}

func NewDocumentCache(client *redis.Client, ttl time.Duration) *DocumentCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DocumentCache{client: client, ttl: ttl}
}

// Observe registers fn to be told about every lookup that reached redis.
func (c *DocumentCache) Observe(fn func(hit bool, took time.Duration)) {
	if c != nil {
		c.observe = fn
	}
}

func cacheKey(number string) string {
	return "p2p:po:" + number
}

func (c *DocumentCache) Get(ctx context.Context, number string) (*Record, error) {
	if c == nil || c.client == nil {
		return nil, ErrCacheMiss
	}

	start := time.Now()
	raw, err := c.client.Get(ctx, cacheKey(number)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.record(false, start)
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", number, err)
	}
	c.record(true, start)

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode cached purchase order %s: %w", number, err)
	}
	return &rec, nil
}

func (c *DocumentCache) Set(ctx context.Context, rec *Record) error {
	if c == nil || c.client == nil {
		return nil
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode purchase order %s: %w", rec.Number, err)
	}
	if err := c.client.Set(ctx, cacheKey(rec.Number), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", rec.Number, err)
	}
	return nil
}

func (c *DocumentCache) record(hit bool, start time.Time) {
	if c.observe != nil {
		c.observe(hit, time.Since(start))
	}
}

// NewRedisClient connects and pings redis.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "brandsphere:db-health:"

// Client wraps Redis operations for sharing health snapshots across
// instances.
type Client struct {
	rdb redis.UniversalClient
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Enabled reports whether a Redis URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// NewClient creates a new Redis client. No connection is made until first
// use; call Ping to verify reachability.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

// NewFromUniversal wraps an existing go-redis client.
func NewFromUniversal(rdb redis.UniversalClient) *Client {
	return &Client{rdb: rdb}
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func healthKey(instanceID string) string {
	return keyPrefix + instanceID
}

// InstanceFromKey extracts the instance ID from a health key.
func InstanceFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, keyPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// PutHealth stores an instance's health snapshot as JSON with a TTL so
// instances that stop publishing age out.
func (c *Client) PutHealth(ctx context.Context, instanceID string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal health snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, healthKey(instanceID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// GetHealth loads one instance's snapshot into v. found is false when the
// key has expired or was never written.
func (c *Client) GetHealth(ctx context.Context, instanceID string, v any) (found bool, err error) {
	data, err := c.rdb.Get(ctx, healthKey(instanceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get failed: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode health snapshot: %w", err)
	}
	return true, nil
}

// ListHealth returns the raw snapshots of every live instance keyed by
// instance ID.
func (c *Client) ListHealth(ctx context.Context) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)

	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id, ok := InstanceFromKey(key)
		if !ok {
			continue
		}
		data, err := c.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		out[id] = json.RawMessage(data)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return out, nil
}

// DeleteHealth removes an instance's snapshot, used on graceful shutdown.
func (c *Client) DeleteHealth(ctx context.Context, instanceID string) error {
	return c.rdb.Del(ctx, healthKey(instanceID)).Err()
}

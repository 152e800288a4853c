package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the execution lease table. Leases give
// each executor run a single cross-process owner; heartbeats extend the lease
// while a run is alive, and an expired lease marks the run as dead and
// reschedulable.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func leaseKey(runKey string) string {
	return fmt.Sprintf("lease:%s", runKey)
}

// heartbeatScript extends a lease only if the caller still owns it.
var heartbeatScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes a lease only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire takes the lease for a run key. Returns false if another owner
// currently holds it.
func (c *Client) Acquire(ctx context.Context, runKey, owner string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, leaseKey(runKey), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", runKey, err)
	}
	return ok, nil
}

// Heartbeat extends a held lease. Returns false if the lease expired or was
// taken over by another owner.
func (c *Client) Heartbeat(ctx context.Context, runKey, owner string, ttl time.Duration) (bool, error) {
	res, err := heartbeatScript.Run(ctx, c.rdb, []string{leaseKey(runKey)}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to heartbeat lease %s: %w", runKey, err)
	}
	return res == 1, nil
}

// Release gives up a held lease.
func (c *Client) Release(ctx context.Context, runKey, owner string) error {
	if _, err := releaseScript.Run(ctx, c.rdb, []string{leaseKey(runKey)}, owner).Result(); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", runKey, err)
	}
	return nil
}

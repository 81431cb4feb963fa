package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/sync_availability.lua
var syncAvailabilityScript string

//go:embed scripts/release_lock.lua
var releaseLockScript string

// availabilityTTL bounds how long a cached listing count may outlive a missed sync.
const availabilityTTL = 10 * time.Minute

type Client struct {
	rdb          *redis.Client
	syncScript   *redis.Script
	unlockScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:          rdb,
		syncScript:   redis.NewScript(syncAvailabilityScript),
		unlockScript: redis.NewScript(releaseLockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SyncAvailability atomically writes a listing's availability snapshot
func (c *Client) SyncAvailability(ctx context.Context, tenantID, listingID string, available int, isAvailable bool) error {
	flag := 0
	if isAvailable {
		flag = 1
	}

	_, err := c.syncScript.Run(ctx, c.rdb, []string{availabilityKey(tenantID, listingID)},
		available, flag, int(availabilityTTL.Seconds())).Result()
	if err != nil {
		return fmt.Errorf("sync availability script failed: %w", err)
	}
	return nil
}

// GetAvailability reads a cached availability snapshot. found is false on a
// cache miss.
func (c *Client) GetAvailability(ctx context.Context, tenantID, listingID string) (available int, isAvailable, found bool, err error) {
	result, err := c.rdb.HGetAll(ctx, availabilityKey(tenantID, listingID)).Result()
	if err != nil {
		return 0, false, false, err
	}
	if len(result) == 0 {
		return 0, false, false, nil
	}

	available, err = strconv.Atoi(result["available"])
	if err != nil {
		return 0, false, false, fmt.Errorf("corrupt availability for listing %s: %w", listingID, err)
	}
	return available, result["is_available"] == "1", true, nil
}

// AcquireLock acquires a distributed lock, returning the owner token
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// ReleaseLock releases a distributed lock if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	return c.unlockScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Err()
}

// ViewVersion returns the current version of a cached view path
func (c *Client) ViewVersion(ctx context.Context, path string) (int64, error) {
	v, err := c.rdb.Get(ctx, viewVersionKey(path)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// BumpViewVersion invalidates every cached rendering of a view path
func (c *Client) BumpViewVersion(ctx context.Context, path string) error {
	return c.rdb.Incr(ctx, viewVersionKey(path)).Err()
}

// GetCachedView returns a cached payload, found is false on a miss
func (c *Client) GetCachedView(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("view:%s", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// SetCachedView stores a payload with TTL
func (c *Client) SetCachedView(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("view:%s", key), data, ttl).Err()
}

func availabilityKey(tenantID, listingID string) string {
	return fmt.Sprintf("listing:%s:%s", tenantID, listingID)
}

func viewVersionKey(path string) string {
	return fmt.Sprintf("viewver:%s", path)
}

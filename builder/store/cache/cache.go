package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("lock is held by someone else")

type RedisClient interface {
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, members ...interface{}) error
	SRem(ctx context.Context, key string, members ...interface{}) error
	SIsMember(ctx context.Context, key string, member interface{}) (bool, error)
	SCard(ctx context.Context, key string) (int64, error)
	// RunWhileLocked runs fn while holding a distributed lock on
	// resourceName, returning ErrLockNotAcquired if it is already held.
	RunWhileLocked(ctx context.Context, resourceName string, expiration time.Duration, fn func(ctx context.Context) error) error
}

type RedisConfig struct {
	Addr               string
	Username           string
	Password           string
	DB                 int
	MaxRetries         int
	MinIdleConnections int
}

type Cache struct {
	core              *redis.Client
	releaseLockScript *redis.Script
}

func NewCache(ctx context.Context, cfg RedisConfig) (RedisClient, error) {
	const releaseLockScript = `
local value = redis.call("GET", KEYS[1])
if not value then
	return -1 -- not locked
end
if value == ARGV[1] then
	return redis.call("DEL",KEYS[1]) -- lock is successfully released
else
	return 0 -- lock does not belongs to us
end`
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		MinIdleConns: cfg.MinIdleConnections,
	})
	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("pinging Redis: %w", err)
	}
	return &Cache{
		core:              client,
		releaseLockScript: redis.NewScript(releaseLockScript),
	}, nil
}

func (c *Cache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return c.core.Set(ctx, key, value, expiration).Err()
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	return c.core.Get(ctx, key).Result()
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	return c.core.Del(ctx, keys...).Err()
}

func (c *Cache) SAdd(ctx context.Context, key string, members ...interface{}) error {
	return c.core.SAdd(ctx, key, members...).Err()
}

func (c *Cache) SRem(ctx context.Context, key string, members ...interface{}) error {
	return c.core.SRem(ctx, key, members...).Err()
}

func (c *Cache) SIsMember(ctx context.Context, key string, member interface{}) (bool, error) {
	return c.core.SIsMember(ctx, key, member).Result()
}

func (c *Cache) SCard(ctx context.Context, key string) (int64, error) {
	return c.core.SCard(ctx, key).Result()
}

func (c *Cache) RunWhileLocked(ctx context.Context, resourceName string, expiration time.Duration, fn func(ctx context.Context) error) error {
	lockKey := "lock:" + resourceName
	lockValue := uuid.NewString()
	ok, err := c.core.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return fmt.Errorf("acquiring lock %q: %w", resourceName, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}
	defer func() {
		_ = c.releaseLockScript.Run(context.WithoutCancel(ctx), c.core, []string{lockKey}, lockValue).Err()
	}()
	return fn(ctx)
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"solara.ai/insights-gateway/app/utils/logger"
	"solara.ai/insights-gateway/config/environment_variables"
)

// RedisCacheService provides caching functionality using Redis
type RedisCacheService struct {
	client *redis.Client
	rs     *redsync.Redsync
}

// NewRedisCacheService creates a new Redis cache service from the environment.
func NewRedisCacheService() CacheService {
	// Parse Redis URL and options
	redisURL := environment_variables.EnvironmentVariables.CACHE_URL
	if redisURL == "" {
		redisURL = environment_variables.EnvironmentVariables.REDIS_URL
	}
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.GetLogger().Error(fmt.Sprintf("Failed to parse Redis URL: %v", err))
		// Every call will report the store as unavailable.
		return &UnavailableCacheService{reason: err}
	}

	// Override with environment variables if provided
	if environment_variables.EnvironmentVariables.CACHE_PASSWORD != "" {
		opts.Password = environment_variables.EnvironmentVariables.CACHE_PASSWORD
	} else if environment_variables.EnvironmentVariables.REDIS_PASSWORD != "" {
		opts.Password = environment_variables.EnvironmentVariables.REDIS_PASSWORD
	}
	if environment_variables.EnvironmentVariables.CACHE_DB != "" {
		if db, err := strconv.Atoi(environment_variables.EnvironmentVariables.CACHE_DB); err == nil {
			opts.DB = db
		}
	} else if environment_variables.EnvironmentVariables.REDIS_DB != "" {
		if db, err := strconv.Atoi(environment_variables.EnvironmentVariables.REDIS_DB); err == nil {
			opts.DB = db
		}
	}

	client := redis.NewClient(opts)

	// Test connection. A failed ping is not fatal: the client reconnects
	// lazily and each call reports ErrStoreUnavailable until it does.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.GetLogger().Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logger.GetLogger().Info("Successfully connected to Redis")
	}

	return NewRedisCacheServiceWithClient(client)
}

// NewRedisCacheServiceWithClient wraps an existing go-redis client.
func NewRedisCacheServiceWithClient(client *redis.Client) *RedisCacheService {
	return &RedisCacheService{
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
	}
}

// Client exposes the underlying go-redis client.
func (r *RedisCacheService) Client() *redis.Client {
	return r.client
}

func redisErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	return unavailable(op, err)
}

// Set stores a value in Redis with an expiration time
func (r *RedisCacheService) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return redisErr("set", r.client.Set(ctx, key, value, expiration).Err())
}

// SetNX stores the value only when the key is absent
func (r *RedisCacheService) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, expiration).Result()
	if err != nil {
		return false, redisErr("setnx", err)
	}
	return ok, nil
}

// Get retrieves a value from Redis
func (r *RedisCacheService) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", redisErr("get", err)
	}
	return val, nil
}

// Delete removes a key from Redis
func (r *RedisCacheService) Delete(ctx context.Context, key string) error {
	return redisErr("del", r.client.Del(ctx, key).Err())
}

// Unlink removes a key from Redis asynchronously (non-blocking)
func (r *RedisCacheService) Unlink(ctx context.Context, key string) error {
	return redisErr("unlink", r.client.Unlink(ctx, key).Err())
}

// DeletePattern removes all keys matching a pattern
func (r *RedisCacheService) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return redisErr("scan", err)
		}
		if len(keys) > 0 {
			pipe := r.client.Pipeline()
			for _, k := range keys {
				pipe.Unlink(ctx, k)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return redisErr("unlink", err)
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return nil
}

// Exists checks if a key exists in Redis
func (r *RedisCacheService) Exists(ctx context.Context, key string) (bool, error) {
	result, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, redisErr("exists", err)
	}
	return result > 0, nil
}

// TTL returns the remaining lifetime of key
func (r *RedisCacheService) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, redisErr("pttl", err)
	}
	// -1 (no expiry) and -2 (absent) come back as negative durations.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// IncrWithExpire increments key and refreshes its expiry in one MULTI/EXEC
func (r *RedisCacheService) IncrWithExpire(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.PExpire(ctx, key, expiration)
		return nil
	})
	if err != nil {
		return 0, redisErr("incr", err)
	}
	return incr.Val(), nil
}

// IncrByFloatWithExpire adds delta to key and refreshes its expiry in one MULTI/EXEC
func (r *RedisCacheService) IncrByFloatWithExpire(ctx context.Context, key string, delta float64, expiration time.Duration) (float64, error) {
	var incr *redis.FloatCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.IncrByFloat(ctx, key, delta)
		pipe.PExpire(ctx, key, expiration)
		return nil
	})
	if err != nil {
		return 0, redisErr("incrbyfloat", err)
	}
	return incr.Val(), nil
}

// Close closes the Redis connection
func (r *RedisCacheService) Close() error {
	return r.client.Close()
}

// HealthCheck verifies Redis connectivity
func (r *RedisCacheService) HealthCheck(ctx context.Context) error {
	return redisErr("ping", r.client.Ping(ctx).Err())
}

// NewMutex returns a redsync mutex that tries exactly once per TryLockContext.
func (r *RedisCacheService) NewMutex(name string, expiry time.Duration) Mutex {
	return &redsyncMutex{
		name: name,
		mutex: r.rs.NewMutex(name,
			redsync.WithExpiry(expiry),
			redsync.WithTries(1),
		),
	}
}

type redsyncMutex struct {
	name  string
	mutex *redsync.Mutex
}

func (m *redsyncMutex) Name() string {
	return m.name
}

func (m *redsyncMutex) TryLockContext(ctx context.Context) error {
	err := m.mutex.TryLockContext(ctx)
	if err == nil {
		return nil
	}
	var taken *redsync.ErrTaken
	var nodeTaken *redsync.ErrNodeTaken
	if errors.As(err, &taken) || errors.As(err, &nodeTaken) || errors.Is(err, redsync.ErrFailed) {
		return ErrLockHeld
	}
	return unavailable("lock "+m.name, err)
}

func (m *redsyncMutex) UnlockContext(ctx context.Context) (bool, error) {
	ok, err := m.mutex.UnlockContext(ctx)
	if err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) {
			return false, nil
		}
		return false, unavailable("unlock "+m.name, err)
	}
	return ok, nil
}

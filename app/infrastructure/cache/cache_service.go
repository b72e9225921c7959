package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCacheMiss reports that the key is absent. The store itself answered.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrStoreUnavailable reports that the store could not be reached or
	// returned a server error. Callers decide whether to fail open or closed.
	ErrStoreUnavailable = errors.New("cache: store unavailable")

	// ErrLockHeld reports that a mutex is currently owned by someone else.
	ErrLockHeld = errors.New("cache: lock held by another owner")
)

// CacheService defines the interface for cache operations
type CacheService interface {
	// Set stores a string value in cache with an expiration time
	Set(ctx context.Context, key string, value string, expiration time.Duration) error

	// SetNX stores the value only if the key does not exist yet.
	// Returns true when this call created the key.
	SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error)

	// Get retrieves a string value from cache. Absent keys return ErrCacheMiss.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes a key from cache synchronously (blocking)
	Delete(ctx context.Context, key string) error

	// Unlink removes a key from cache asynchronously (non-blocking)
	Unlink(ctx context.Context, key string) error

	// DeletePattern removes all keys matching a pattern
	DeletePattern(ctx context.Context, pattern string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// TTL returns the remaining time to live. Zero means the key is absent
	// or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// IncrWithExpire atomically increments an integer counter and (re)sets
	// its expiry in the same round trip.
	IncrWithExpire(ctx context.Context, key string, expiration time.Duration) (int64, error)

	// IncrByFloatWithExpire atomically adds delta to a float counter and
	// (re)sets its expiry in the same round trip.
	IncrByFloatWithExpire(ctx context.Context, key string, delta float64, expiration time.Duration) (float64, error)

	// Close closes the cache connection
	Close() error

	// HealthCheck verifies cache connectivity
	HealthCheck(ctx context.Context) error

	// NewMutex returns a distributed mutex bound to name with a server-side
	// expiry. Nothing is sent to the store until TryLockContext.
	NewMutex(name string, expiry time.Duration) Mutex
}

// Mutex is a single-attempt distributed lock.
type Mutex interface {
	Name() string

	// TryLockContext makes exactly one acquisition attempt. It returns nil
	// on success, ErrLockHeld when another owner holds it and an error
	// wrapping ErrStoreUnavailable when the store cannot answer.
	TryLockContext(ctx context.Context) error

	// UnlockContext releases the lock if this owner still holds it.
	// It reports false when the lease had already expired or changed owner.
	UnlockContext(ctx context.Context) (bool, error)
}

// IsUnavailable reports whether err means the store could not answer.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// GetJSON reads key and decodes the JSON value into dest.
func GetJSON(ctx context.Context, svc CacheService, key string, dest any) error {
	raw, err := svc.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value for %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes value as JSON and stores it under key.
func SetJSON(ctx context.Context, svc CacheService, key string, value any, expiration time.Duration) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return svc.Set(ctx, key, string(jsonValue), expiration)
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

package cache

import (
	"context"
	"time"
)

// UnavailableCacheService stands in when no backend could be configured.
// Every operation reports ErrStoreUnavailable so callers fail closed
// instead of silently treating the cache as empty.
type UnavailableCacheService struct {
	reason error
}

func NewUnavailableCacheService(reason error) *UnavailableCacheService {
	return &UnavailableCacheService{reason: reason}
}

func (n *UnavailableCacheService) err(op string) error {
	if n.reason != nil {
		return unavailable(op, n.reason)
	}
	return ErrStoreUnavailable
}

func (n *UnavailableCacheService) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return n.err("set")
}

func (n *UnavailableCacheService) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	return false, n.err("setnx")
}

func (n *UnavailableCacheService) Get(ctx context.Context, key string) (string, error) {
	return "", n.err("get")
}

func (n *UnavailableCacheService) Delete(ctx context.Context, key string) error {
	return n.err("del")
}

func (n *UnavailableCacheService) Unlink(ctx context.Context, key string) error {
	return n.err("unlink")
}

func (n *UnavailableCacheService) DeletePattern(ctx context.Context, pattern string) error {
	return n.err("scan")
}

func (n *UnavailableCacheService) Exists(ctx context.Context, key string) (bool, error) {
	return false, n.err("exists")
}

func (n *UnavailableCacheService) TTL(ctx context.Context, key string) (time.Duration, error) {
	return 0, n.err("pttl")
}

func (n *UnavailableCacheService) IncrWithExpire(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	return 0, n.err("incr")
}

func (n *UnavailableCacheService) IncrByFloatWithExpire(ctx context.Context, key string, delta float64, expiration time.Duration) (float64, error) {
	return 0, n.err("incrbyfloat")
}

func (n *UnavailableCacheService) Close() error {
	return nil
}

func (n *UnavailableCacheService) HealthCheck(ctx context.Context) error {
	return n.err("ping")
}

func (n *UnavailableCacheService) NewMutex(name string, expiry time.Duration) Mutex {
	return &unavailableMutex{name: name, svc: n}
}

type unavailableMutex struct {
	name string
	svc  *UnavailableCacheService
}

func (m *unavailableMutex) Name() string {
	return m.name
}

func (m *unavailableMutex) TryLockContext(ctx context.Context) error {
	return m.svc.err("lock " + m.name)
}

func (m *unavailableMutex) UnlockContext(ctx context.Context) (bool, error) {
	return false, m.svc.err("unlock " + m.name)
}

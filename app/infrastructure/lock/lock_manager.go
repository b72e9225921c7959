// Package lock provides the single-flight "intent to generate" locks.
//
// A lock key moves UNLOCKED -> LOCKED(owner, expiresAt) -> UNLOCKED, either
// through Release or through server-side lease expiry. Acquisition is one
// atomic set-if-absent; there is no blocking wait here, callers that want
// to wait do so explicitly.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/utils/logger"
	"solara.ai/insights-gateway/config/environment_variables"
)

const DefaultLeaseDuration = 60 * time.Second

// releaseTimeout bounds a release issued after the request context is gone.
const releaseTimeout = 3 * time.Second

var (
	// ErrLockHeld means another requester currently owns the key.
	ErrLockHeld = errors.New("lock: held by another requester")

	// ErrLockStoreUnavailable means the lock store could not answer.
	// Callers must not proceed unlocked.
	ErrLockStoreUnavailable = errors.New("lock: store unavailable")
)

// Manager hands out leases keyed by lock key.
type Manager interface {
	TryAcquire(ctx context.Context, lockKey string, lease time.Duration) (*Lease, error)
}

type LockManager struct {
	cache        cache.CacheService
	defaultLease time.Duration
}

func NewLockManager(cacheService cache.CacheService) *LockManager {
	lease := time.Duration(environment_variables.EnvironmentVariables.LOCK_LEASE_SECONDS) * time.Second
	if lease <= 0 {
		lease = DefaultLeaseDuration
	}
	return &LockManager{
		cache:        cacheService,
		defaultLease: lease,
	}
}

// TryAcquire makes one atomic acquisition attempt. A zero lease uses the
// configured default. It returns ErrLockHeld or ErrLockStoreUnavailable on
// failure; the store-down case is never reported as acquired.
func (m *LockManager) TryAcquire(ctx context.Context, lockKey string, lease time.Duration) (*Lease, error) {
	if lease <= 0 {
		lease = m.defaultLease
	}
	mutex := m.cache.NewMutex(lockKey, lease)
	err := mutex.TryLockContext(ctx)
	switch {
	case err == nil:
		return &Lease{
			mutex:     mutex,
			key:       lockKey,
			expiresAt: time.Now().Add(lease),
		}, nil
	case errors.Is(err, cache.ErrLockHeld):
		return nil, ErrLockHeld
	default:
		return nil, fmt.Errorf("%w: %w", ErrLockStoreUnavailable, err)
	}
}

// Lease is an acquired lock.
type Lease struct {
	mutex     cache.Mutex
	key       string
	expiresAt time.Time
}

func (l *Lease) Key() string {
	return l.key
}

// ExpiresAt is the local estimate of server-side expiry.
func (l *Lease) ExpiresAt() time.Time {
	return l.expiresAt
}

// Release gives the lock back. It never returns an error: failures are
// logged and the lease expiry reclaims the key. Release runs on a context
// detached from ctx cancellation so a timed-out request still unlocks.
func (l *Lease) Release(ctx context.Context) {
	if l == nil {
		return
	}
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	released, err := l.mutex.UnlockContext(releaseCtx)
	if err != nil {
		logger.GetLogger().WithFields(logrus.Fields{
			"lock_key": l.key,
			"error":    err.Error(),
		}).Warn("lock: release failed, lease expiry will reclaim the key")
		return
	}
	if !released {
		logger.GetLogger().WithField("lock_key", l.key).
			Warn("lock: lease had already expired before release")
	}
}

// ForceRelease deletes a lock key regardless of owner. Operator use only.
func ForceRelease(ctx context.Context, cacheService cache.CacheService, lockKey string) error {
	return cacheService.Delete(ctx, lockKey)
}

package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"solara.ai/insights-gateway/app/domain/contentkey"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/utils/logger"
)

// DefaultCacheTTL applies when a policy leaves CacheTTL unset.
const DefaultCacheTTL = 36 * time.Hour

// ErrRecordNotFound means the store answered and holds nothing for the key.
var ErrRecordNotFound = errors.New("generation: record not found")

// ContentStore loads and saves records. Load returns ErrRecordNotFound when
// absent; any other error means the store could not answer. Stores do not
// check fingerprints, the coordinator does.
type ContentStore interface {
	Load(ctx context.Context, key contentkey.LogicalKey) (*Record, error)
	Save(ctx context.Context, key contentkey.LogicalKey, record *Record, ttl time.Duration) error
}

// RecordRepository is the durable side, implemented over the relational store.
type RecordRepository interface {
	LoadByKey(ctx context.Context, recordKey string) (*Record, error)
	UpsertByKey(ctx context.Context, recordKey string, kind string, subjectID string, record *Record) error
}

// CacheContentStore keeps records in the shared cache under the
// version-qualified cache key.
type CacheContentStore struct {
	cache cache.CacheService
}

func NewCacheContentStore(cacheService cache.CacheService) *CacheContentStore {
	return &CacheContentStore{cache: cacheService}
}

func (s *CacheContentStore) Load(ctx context.Context, key contentkey.LogicalKey) (*Record, error) {
	var record Record
	err := cache.GetJSON(ctx, s.cache, key.CacheKey(), &record)
	switch {
	case err == nil:
		return &record, nil
	case errors.Is(err, cache.ErrCacheMiss):
		return nil, ErrRecordNotFound
	case cache.IsUnavailable(err) || errors.Is(err, context.Canceled):
		return nil, err
	default:
		// Undecodable entries are regenerated and overwritten.
		logger.GetLogger().WithFields(logrus.Fields{
			"cache_key": key.CacheKey(),
			"error":     err.Error(),
		}).Warn("cache store: dropping undecodable record")
		return nil, ErrRecordNotFound
	}
}

func (s *CacheContentStore) Save(ctx context.Context, key contentkey.LogicalKey, record *Record, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return cache.SetJSON(ctx, s.cache, key.CacheKey(), record, ttl)
}

// DurableContentStore keeps one row per record key, overwritten in place.
type DurableContentStore struct {
	repo RecordRepository
}

func NewDurableContentStore(repo RecordRepository) *DurableContentStore {
	return &DurableContentStore{repo: repo}
}

func (s *DurableContentStore) Load(ctx context.Context, key contentkey.LogicalKey) (*Record, error) {
	record, err := s.repo.LoadByKey(ctx, key.RecordKey())
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrRecordNotFound
	}
	return record, nil
}

// Save ignores ttl; durable rows are retained.
func (s *DurableContentStore) Save(ctx context.Context, key contentkey.LogicalKey, record *Record, _ time.Duration) error {
	if err := s.repo.UpsertByKey(ctx, key.RecordKey(), key.Kind, key.SubjectID, record); err != nil {
		return fmt.Errorf("durable store: upsert %s: %w", key.RecordKey(), err)
	}
	return nil
}

// TieredContentStore reads through the cache in front of the durable
// store. The durable copy is authoritative; the cache copy is best effort.
type TieredContentStore struct {
	front ContentStore
	back  ContentStore
}

func NewTieredContentStore(front ContentStore, back ContentStore) *TieredContentStore {
	return &TieredContentStore{front: front, back: back}
}

func (s *TieredContentStore) Load(ctx context.Context, key contentkey.LogicalKey) (*Record, error) {
	record, err := s.front.Load(ctx, key)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		logger.GetLogger().WithFields(logrus.Fields{
			"cache_key": key.CacheKey(),
			"error":     err.Error(),
		}).Warn("tiered store: cache read failed, reading durable store")
	}

	record, err = s.back.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if ferr := s.front.Save(ctx, key, record, 0); ferr != nil {
		logger.GetLogger().WithField("cache_key", key.CacheKey()).
			Warnf("tiered store: backfill failed: %v", ferr)
	}
	return record, nil
}

func (s *TieredContentStore) Save(ctx context.Context, key contentkey.LogicalKey, record *Record, ttl time.Duration) error {
	if err := s.back.Save(ctx, key, record, ttl); err != nil {
		return err
	}
	if err := s.front.Save(ctx, key, record, ttl); err != nil {
		logger.GetLogger().WithField("cache_key", key.CacheKey()).
			Warnf("tiered store: cache write failed: %v", err)
	}
	return nil
}

// NewStores serves ephemeral kinds from the cache and durable kinds from
// the relational store with the cache in front.
func NewStores(cacheService cache.CacheService, repo RecordRepository) Stores {
	ephemeral := NewCacheContentStore(cacheService)
	return Stores{
		Ephemeral: ephemeral,
		Durable:   NewTieredContentStore(ephemeral, NewDurableContentStore(repo)),
	}
}

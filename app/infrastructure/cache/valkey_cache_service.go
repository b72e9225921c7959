package cache

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
	"solara.ai/insights-gateway/app/utils/logger"
	"solara.ai/insights-gateway/config/environment_variables"
)

// releaseScript deletes the lock key only while it still carries our token.
var releaseScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// ValkeyCacheService provides caching functionality using Valkey
type ValkeyCacheService struct {
	client valkey.Client
}

// parseValkeyURL parses a Valkey URL and returns address, password, database, and error
func parseValkeyURL(valkeyURL string) (address, password string, database int, err error) {
	// Default values
	database = -1 // -1 means no database specified

	// Handle plain address without protocol
	if !strings.Contains(valkeyURL, "://") {
		return valkeyURL, "", -1, nil
	}

	u, err := url.Parse(valkeyURL)
	if err != nil {
		return "", "", -1, fmt.Errorf("invalid URL format: %w", err)
	}

	address = u.Host
	if address == "" {
		return "", "", -1, fmt.Errorf("no host specified in URL")
	}

	if u.User != nil {
		password, _ = u.User.Password()
	}

	// Database number is the path component
	if u.Path != "" && u.Path != "/" {
		dbStr := strings.TrimPrefix(u.Path, "/")
		if dbStr != "" {
			if db, parseErr := strconv.Atoi(dbStr); parseErr == nil {
				database = db
			}
		}
	}

	return address, password, database, nil
}

// NewValkeyCacheService creates a new Valkey cache service
func NewValkeyCacheService() CacheService {
	valkeyURL := environment_variables.EnvironmentVariables.CACHE_URL
	if valkeyURL == "" {
		valkeyURL = "valkey://localhost:6379"
	}

	address, password, db, err := parseValkeyURL(valkeyURL)
	if err != nil {
		logger.GetLogger().Errorf("Failed to parse Valkey URL: %v", err)
		return &UnavailableCacheService{reason: err}
	}

	opts := valkey.ClientOption{
		InitAddress: []string{address},
	}
	if password != "" {
		opts.Password = password
	}
	if db != -1 {
		opts.SelectDB = db
	}

	// Override with environment variables if provided
	if environment_variables.EnvironmentVariables.CACHE_PASSWORD != "" {
		opts.Password = environment_variables.EnvironmentVariables.CACHE_PASSWORD
	}
	if environment_variables.EnvironmentVariables.CACHE_DB != "" {
		if db, err := strconv.Atoi(environment_variables.EnvironmentVariables.CACHE_DB); err == nil {
			opts.SelectDB = db
		}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		logger.GetLogger().Errorf("Failed to connect to Valkey: %v", err)
		return &UnavailableCacheService{reason: err}
	}

	logger.GetLogger().Info("Successfully connected to Valkey")
	return &ValkeyCacheService{
		client: client,
	}
}

func valkeyErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if valkey.IsValkeyNil(err) {
		return ErrCacheMiss
	}
	return unavailable(op, err)
}

// Set stores a value in Valkey with an expiration time
func (v *ValkeyCacheService) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	var cmd valkey.Completed
	if expiration > 0 {
		cmd = v.client.B().Set().Key(key).Value(value).PxMilliseconds(expiration.Milliseconds()).Build()
	} else {
		cmd = v.client.B().Set().Key(key).Value(value).Build()
	}
	return valkeyErr("set", v.client.Do(ctx, cmd).Error())
}

// SetNX stores the value only when the key is absent
func (v *ValkeyCacheService) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	cmd := v.client.B().Set().Key(key).Value(value).Nx().PxMilliseconds(expiration.Milliseconds()).Build()
	err := v.client.Do(ctx, cmd).Error()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return false, nil
		}
		return false, valkeyErr("setnx", err)
	}
	return true, nil
}

// Get retrieves a value from Valkey
func (v *ValkeyCacheService) Get(ctx context.Context, key string) (string, error) {
	val, err := v.client.Do(ctx, v.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		return "", valkeyErr("get", err)
	}
	return val, nil
}

// Delete removes a key from Valkey synchronously (blocking)
func (v *ValkeyCacheService) Delete(ctx context.Context, key string) error {
	return valkeyErr("del", v.client.Do(ctx, v.client.B().Del().Key(key).Build()).Error())
}

// Unlink removes a key from Valkey asynchronously (non-blocking)
func (v *ValkeyCacheService) Unlink(ctx context.Context, key string) error {
	return valkeyErr("unlink", v.client.Do(ctx, v.client.B().Unlink().Key(key).Build()).Error())
}

// DeletePattern removes all keys matching a pattern.
// KEYS is acceptable here: it only backs operator-triggered invalidation.
func (v *ValkeyCacheService) DeletePattern(ctx context.Context, pattern string) error {
	keys, err := v.client.Do(ctx, v.client.B().Keys().Pattern(pattern).Build()).AsStrSlice()
	if err != nil {
		return valkeyErr("keys", err)
	}
	if len(keys) > 0 {
		if err := v.client.Do(ctx, v.client.B().Unlink().Key(keys...).Build()).Error(); err != nil {
			return valkeyErr("unlink", err)
		}
	}
	return nil
}

// Exists checks if a key exists in Valkey
func (v *ValkeyCacheService) Exists(ctx context.Context, key string) (bool, error) {
	count, err := v.client.Do(ctx, v.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, valkeyErr("exists", err)
	}
	return count > 0, nil
}

// TTL returns the remaining lifetime of key
func (v *ValkeyCacheService) TTL(ctx context.Context, key string) (time.Duration, error) {
	ms, err := v.client.Do(ctx, v.client.B().Pttl().Key(key).Build()).AsInt64()
	if err != nil {
		return 0, valkeyErr("pttl", err)
	}
	if ms < 0 {
		return 0, nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// IncrWithExpire increments key and refreshes its expiry in one pipeline
func (v *ValkeyCacheService) IncrWithExpire(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	results := v.client.DoMulti(ctx,
		v.client.B().Incr().Key(key).Build(),
		v.client.B().Pexpire().Key(key).Milliseconds(expiration.Milliseconds()).Build(),
	)
	count, err := results[0].AsInt64()
	if err != nil {
		return 0, valkeyErr("incr", err)
	}
	if err := results[1].Error(); err != nil {
		return 0, valkeyErr("pexpire", err)
	}
	return count, nil
}

// IncrByFloatWithExpire adds delta to key and refreshes its expiry in one pipeline
func (v *ValkeyCacheService) IncrByFloatWithExpire(ctx context.Context, key string, delta float64, expiration time.Duration) (float64, error) {
	results := v.client.DoMulti(ctx,
		v.client.B().Incrbyfloat().Key(key).Increment(delta).Build(),
		v.client.B().Pexpire().Key(key).Milliseconds(expiration.Milliseconds()).Build(),
	)
	total, err := results[0].AsFloat64()
	if err != nil {
		return 0, valkeyErr("incrbyfloat", err)
	}
	if err := results[1].Error(); err != nil {
		return 0, valkeyErr("pexpire", err)
	}
	return total, nil
}

// Close closes the Valkey connection
func (v *ValkeyCacheService) Close() error {
	v.client.Close()
	return nil
}

// HealthCheck verifies Valkey connectivity
func (v *ValkeyCacheService) HealthCheck(ctx context.Context) error {
	return valkeyErr("ping", v.client.Do(ctx, v.client.B().Ping().Build()).Error())
}

// NewMutex returns a SET NX PX mutex released by a compare-and-delete script.
func (v *ValkeyCacheService) NewMutex(name string, expiry time.Duration) Mutex {
	return &valkeyMutex{
		svc:    v,
		name:   name,
		expiry: expiry,
		token:  uuid.NewString(),
	}
}

type valkeyMutex struct {
	svc    *ValkeyCacheService
	name   string
	expiry time.Duration
	token  string
}

func (m *valkeyMutex) Name() string {
	return m.name
}

func (m *valkeyMutex) TryLockContext(ctx context.Context) error {
	ok, err := m.svc.SetNX(ctx, m.name, m.token, m.expiry)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

func (m *valkeyMutex) UnlockContext(ctx context.Context) (bool, error) {
	deleted, err := releaseScript.Exec(ctx, m.svc.client, []string{m.name}, []string{m.token}).AsInt64()
	if err != nil {
		return false, valkeyErr("unlock "+m.name, err)
	}
	return deleted == 1, nil
}

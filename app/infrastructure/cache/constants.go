package cache

const (
	// CacheVersion is the prefix for every key this service writes.
	CacheVersion = "v1"

	// GeneratedContentKeyPrefix namespaces cached generated content.
	GeneratedContentKeyPrefix = CacheVersion + ":gen"

	// GenerationLockKeyPrefix namespaces single-flight generation locks.
	GenerationLockKeyPrefix = CacheVersion + ":lock:gen"

	// SubjectContentKeyPattern matches every cached content key of one subject.
	// Keys are laid out as <prefix>:<kind>:<subject>:...
	SubjectContentKeyPattern = GeneratedContentKeyPrefix + ":*:%s:*"

	// RateLimitWindowKeyPattern formats fixed-window counters: class, requester, window start (unix seconds).
	RateLimitWindowKeyPattern = CacheVersion + ":ratelimit:%s:%s:%d"

	// RateLimitCooldownKeyPattern formats the per-requester cooldown marker.
	RateLimitCooldownKeyPattern = CacheVersion + ":ratelimit:cooldown:%s"

	// BudgetDailyKeyPattern formats the UTC-day spend counter (YYYY-MM-DD).
	BudgetDailyKeyPattern = CacheVersion + ":budget:daily:%s"

	// HealthProbeKey is written by the cron health check.
	HealthProbeKey = CacheVersion + ":health:probe"
)

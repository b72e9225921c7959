package cache

import (
	"strings"

	"solara.ai/insights-gateway/app/utils/logger"
	"solara.ai/insights-gateway/config/environment_variables"
)

// NewCacheService creates a cache service based on configuration
func NewCacheService() CacheService {
	cacheType := strings.ToLower(environment_variables.EnvironmentVariables.CACHE_TYPE)

	switch cacheType {
	case "", "redis":
		return NewRedisCacheService()
	case "valkey":
		return NewValkeyCacheService()
	default:
		logger.GetLogger().Warnf("unknown CACHE_TYPE %q, falling back to redis", cacheType)
		return NewRedisCacheService()
	}
}

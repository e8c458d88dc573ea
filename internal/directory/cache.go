// internal/directory/cache.go
package directory

import (
	"context"
	"encoding/json"
	"time"

	"access-workflow/internal/common/logger"
	"access-workflow/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "user:"

// CachedDirectory is a cache-aside decorator over another UserDirectory.
// Redis errors degrade to a direct lookup; misses are never cached.
type CachedDirectory struct {
	next   UserDirectory
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedDirectory(next UserDirectory, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedDirectory {
	return &CachedDirectory{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "directory_cache"}),
	}
}

func (c *CachedDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	key := cacheKeyPrefix + id

	val, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var u models.User
		if jsonErr := json.Unmarshal([]byte(val), &u); jsonErr == nil {
			return &u, nil
		}
		c.logger.Warn("Discarding undecodable cache entry", map[string]interface{}{"key": key})
	case err != redis.Nil:
		c.logger.Warn("Directory cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	u, err := c.next.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(u)
	if err == nil {
		err = c.redis.Set(ctx, key, data, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("Directory cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	return u, nil
}

// Invalidate drops the cached entry for id.
func (c *CachedDirectory) Invalidate(ctx context.Context, id string) error {
	return c.redis.Del(ctx, cacheKeyPrefix+id).Err()
}

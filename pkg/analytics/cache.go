package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/practicehub/practicehub/pkg/observability"
)

// CachedMapper layers an in-process LRU and Redis in front of a Mapper.
// Entries are cached per organization so a hierarchy or mapping change only
// invalidates the organizations it touches.
type CachedMapper struct {
	inner   Mapper
	local   *lru.LRU[string, []string]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedMapper creates a two-layer cache over the mapper. redisClient may
// be nil, which disables the second layer.
func NewCachedMapper(inner Mapper, redisClient *redis.Client, ttl time.Duration, metrics *observability.Metrics) *CachedMapper {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &CachedMapper{
		inner:   inner,
		local:   lru.NewLRU[string, []string](4096, nil, ttl),
		redis:   redisClient,
		ttl:     ttl,
		metrics: metrics,
	}
}

// PracticesFor returns the union of practice ids for the organizations,
// consulting the local cache, then Redis, then the underlying mapper.
func (c *CachedMapper) PracticesFor(ctx context.Context, organizationIDs []string) ([]string, error) {
	union := make(map[string]struct{})

	for _, orgID := range organizationIDs {
		practices, err := c.practicesForOrg(ctx, orgID)
		if err != nil {
			return nil, err
		}
		for _, p := range practices {
			union[p] = struct{}{}
		}
	}

	if len(union) == 0 {
		return nil, nil
	}

	result := make([]string, 0, len(union))
	for p := range union {
		result = append(result, p)
	}
	sort.Strings(result)
	return result, nil
}

func (c *CachedMapper) practicesForOrg(ctx context.Context, orgID string) ([]string, error) {
	if practices, ok := c.local.Get(orgID); ok {
		c.recordHit("local")
		return practices, nil
	}

	if c.redis != nil {
		cached, err := c.redis.Get(ctx, redisKey(orgID)).Result()
		if err == nil {
			var practices []string
			if err := json.Unmarshal([]byte(cached), &practices); err == nil {
				c.recordHit("redis")
				c.local.Add(orgID, practices)
				return practices, nil
			}
		}
	}

	c.recordMiss()

	practices, err := c.inner.PracticesFor(ctx, []string{orgID})
	if err != nil {
		return nil, err
	}
	if practices == nil {
		// Cache the absence too; an unmapped org is a valid, frequent state.
		practices = []string{}
	}

	c.local.Add(orgID, practices)
	if c.redis != nil {
		if data, err := json.Marshal(practices); err == nil {
			c.redis.Set(ctx, redisKey(orgID), data, c.ttl)
		}
	}

	return practices, nil
}

// Invalidate drops the cached mapping for one organization in both layers
func (c *CachedMapper) Invalidate(ctx context.Context, orgID string) {
	c.local.Remove(orgID)
	if c.redis != nil {
		c.redis.Del(ctx, redisKey(orgID))
	}
}

func (c *CachedMapper) recordHit(layer string) {
	if c.metrics != nil {
		c.metrics.MappingCacheHitsTotal.WithLabelValues(layer).Inc()
	}
}

func (c *CachedMapper) recordMiss() {
	if c.metrics != nil {
		c.metrics.MappingCacheMissesTotal.Inc()
	}
}

func redisKey(orgID string) string {
	return fmt.Sprintf("org_practices:%s", orgID)
}

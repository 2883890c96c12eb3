package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/24f2002329/caniedit/internal/metrics"
	"github.com/24f2002329/caniedit/internal/models"
)

const (
	planCachePrefix = "sub:plan:"
	planGenPrefix   = "sub:plangen:"
)

// PlanCache keeps resolved plans in Redis for a short TTL. A nil
// *PlanCache is valid and caches nothing. Usage counters never go here.
//
// Entries are keyed by a per-user generation. Invalidate bumps the
// generation, so a plan read before a subscription change and written
// after it lands under a key nobody reads again.
type PlanCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPlanCache(rdb *redis.Client, ttl time.Duration) *PlanCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PlanCache{rdb: rdb, ttl: ttl}
}

func planCacheKey(userID string, gen int64) string {
	return fmt.Sprintf("%s%s:%d", planCachePrefix, userID, gen)
}

func planGenKey(userID string) string {
	return planGenPrefix + userID
}

// Get returns the cached plan for userID, if any, and the generation the
// caller must pass to Set when it fills a miss.
func (c *PlanCache) Get(ctx context.Context, userID string) (*models.Plan, int64, bool, error) {
	if c == nil {
		return nil, 0, false, nil
	}
	gen, err := c.rdb.Get(ctx, planGenKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		metrics.PlanCacheLookups.WithLabelValues("error").Inc()
		return nil, 0, false, fmt.Errorf("plan cache generation: %w", err)
	}

	raw, err := c.rdb.Get(ctx, planCacheKey(userID, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.PlanCacheLookups.WithLabelValues("miss").Inc()
		return nil, gen, false, nil
	}
	if err != nil {
		metrics.PlanCacheLookups.WithLabelValues("error").Inc()
		return nil, 0, false, fmt.Errorf("plan cache get: %w", err)
	}

	var p models.Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		metrics.PlanCacheLookups.WithLabelValues("error").Inc()
		return nil, 0, false, fmt.Errorf("plan cache decode: %w", err)
	}
	metrics.PlanCacheLookups.WithLabelValues("hit").Inc()
	return &p, gen, true, nil
}

// Set stores p under the generation returned by Get.
func (c *PlanCache) Set(ctx context.Context, userID string, gen int64, p *models.Plan) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, planCacheKey(userID, gen), raw, c.ttl).Err()
}

// Invalidate moves the user to a new generation after a subscription
// change. It must run after the change commits.
func (c *PlanCache) Invalidate(ctx context.Context, userID string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Incr(ctx, planGenKey(userID)).Err()
}

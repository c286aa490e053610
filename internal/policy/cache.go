package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "consentry/internal/platform/redis"
	id "consentry/pkg/domain"
)

// Cache memoizes applicable-version lookups in Redis. Lookups are keyed on
// the minute so historical queries stay deterministic; the TTL bounds how
// long a newly published version can go unseen. A nil cache is a valid
// always-miss cache.
type Cache struct {
	client *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(client *platformredis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

type cachedVersion struct {
	ID            string     `json:"id"`
	PolicyID      string     `json:"policy_id"`
	Number        int        `json:"number"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	Matrix        Matrix     `json:"matrix"`
	CreatedAt     time.Time  `json:"created_at"`
	CreatedBy     string     `json:"created_by"`
}

func cacheKey(jurisdiction id.Jurisdiction, tenant id.Tenant, at time.Time) string {
	return fmt.Sprintf("consentry:policy:%s:%s:%d", jurisdiction, tenant, at.Truncate(time.Minute).Unix())
}

func (c *Cache) get(ctx context.Context, jurisdiction id.Jurisdiction, tenant id.Tenant, at time.Time) (*Version, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKey(jurisdiction, tenant, at)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "policy cache read failed", "error", err)
		return nil, false
	}

	var cv cachedVersion
	if err := json.Unmarshal(raw, &cv); err != nil {
		return nil, false
	}
	versionID, err := id.ParsePolicyVersionID(cv.ID)
	if err != nil {
		return nil, false
	}
	policyID, err := id.ParsePolicyID(cv.PolicyID)
	if err != nil {
		return nil, false
	}
	return &Version{
		ID:            versionID,
		PolicyID:      policyID,
		Number:        cv.Number,
		EffectiveFrom: cv.EffectiveFrom,
		EffectiveTo:   cv.EffectiveTo,
		Matrix:        cv.Matrix,
		CreatedAt:     cv.CreatedAt,
		CreatedBy:     cv.CreatedBy,
	}, true
}

func (c *Cache) put(ctx context.Context, jurisdiction id.Jurisdiction, tenant id.Tenant, at time.Time, v *Version) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(cachedVersion{
		ID:            v.ID.String(),
		PolicyID:      v.PolicyID.String(),
		Number:        v.Number,
		EffectiveFrom: v.EffectiveFrom,
		EffectiveTo:   v.EffectiveTo,
		Matrix:        v.Matrix,
		CreatedAt:     v.CreatedAt,
		CreatedBy:     v.CreatedBy,
	})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(jurisdiction, tenant, at), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "policy cache write failed", "error", err)
	}
}

// invalidate is best effort; stale entries also age out via the TTL.
func (c *Cache) invalidate(ctx context.Context, jurisdiction id.Jurisdiction, tenant id.Tenant) {
	if c == nil {
		return
	}
	pattern := fmt.Sprintf("consentry:policy:%s:%s:*", jurisdiction, tenant)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.WarnContext(ctx, "policy cache invalidation failed", "error", err)
			return
		}
	}
}

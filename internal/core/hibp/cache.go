package hibp

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
	"github.com/hibp-mcp/hibp-mcp/internal/metrics"
)

// CachePolicy controls cache TTLs for public responses.
type CachePolicy struct {
	CatalogTTL time.Duration
	RangeTTL   time.Duration
}

func cachePolicyWithDefaults(policy CachePolicy) CachePolicy {
	if policy.CatalogTTL == 0 {
		policy.CatalogTTL = 6 * time.Hour
	}
	if policy.RangeTTL == 0 {
		policy.RangeTTL = 24 * time.Hour
	}
	return policy
}

// cacheTTL returns how long a response for op may be reused. Account
// lookups are never cached.
func cacheTTL(policy CachePolicy, op core.Operation) time.Duration {
	policy = cachePolicyWithDefaults(policy)

	switch op {
	case core.OperationBreachedSites, core.OperationBreachByName, core.OperationDataClasses:
		return policy.CatalogTTL
	case core.OperationPasswordRange:
		return policy.RangeTTL
	default:
		return 0
	}
}

func (c *Client) cacheEnabled(op core.Operation) bool {
	return c != nil && c.UseCache && c.Cache != nil && cacheTTL(c.CachePolicy, op) > 0
}

func (c *Client) cached(ctx context.Context, op core.Operation, key string) *core.CachedResponse {
	if !c.cacheEnabled(op) {
		return nil
	}

	cached, err := c.Cache.GetCachedResponse(ctx, op, key)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn("Response cache read failed",
				zap.String("operation", string(op)),
				zap.Error(err))
		}
		return nil
	}

	metrics.RecordCacheLookup(string(op), cached != nil)
	return cached
}

func (c *Client) store(ctx context.Context, op core.Operation, key string, resp *upstreamResponse) {
	if !c.cacheEnabled(op) || resp == nil || resp.StatusCode != 200 {
		return
	}

	now := c.now()
	ttl := cacheTTL(c.CachePolicy, op)
	entry := core.CachedResponse{
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		FetchedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := c.Cache.SetCachedResponse(ctx, op, key, entry, ttl); err != nil && c.Logger != nil {
		c.Logger.Warn("Response cache write failed",
			zap.String("operation", string(op)),
			zap.Error(err))
	}
}

package reconcile

import (
	"context"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedLookup memoizes successful lookups for a TTL. Errors are never cached.
type CachedLookup struct {
	next  Lookup
	cache *gocache.Cache
}

// NewCachedLookup wraps next. A non-positive ttl disables caching.
func NewCachedLookup(next Lookup, ttl time.Duration) *CachedLookup {
	if ttl <= 0 {
		return &CachedLookup{next: next}
	}
	return &CachedLookup{next: next, cache: gocache.New(ttl, 2*ttl)}
}

func slipKey(code string) string { return "slip:" + code }
func observationKey(id int64) string { return "obs:" + strconv.FormatInt(id, 10) }

// FieldSlipByCode implements Lookup.
func (c *CachedLookup) FieldSlipByCode(ctx context.Context, code string) ([]int64, error) {
	if c.cache != nil {
		if val, found := c.cache.Get(slipKey(code)); found {
			return val.([]int64), nil
		}
	}
	ids, err := c.next.FieldSlipByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.SetDefault(slipKey(code), ids)
	}
	return ids, nil
}

// Observation implements Lookup.
func (c *CachedLookup) Observation(ctx context.Context, id int64) (Observation, error) {
	if c.cache != nil {
		if val, found := c.cache.Get(observationKey(id)); found {
			return val.(Observation), nil
		}
	}
	obs, err := c.next.Observation(ctx, id)
	if err != nil {
		return Observation{}, err
	}
	if c.cache != nil {
		c.cache.SetDefault(observationKey(id), obs)
	}
	return obs, nil
}

// InvalidateFieldSlip drops the cached linkage for code, for example after
// the slip was created or re-pointed. Safe on a nil receiver.
func (c *CachedLookup) InvalidateFieldSlip(code string) {
	if c != nil && c.cache != nil {
		c.cache.Delete(slipKey(code))
	}
}

// InvalidateObservation drops the cached observation id.
func (c *CachedLookup) InvalidateObservation(id int64) {
	if c != nil && c.cache != nil {
		c.cache.Delete(observationKey(id))
	}
}

// Flush clears every cached entry.
func (c *CachedLookup) Flush() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

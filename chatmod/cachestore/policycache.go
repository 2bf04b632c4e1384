package cachestore

import (
	"context"
	"encoding/json"

	"github.com/warden-mod/warden/chatmod/policy"
)

// cache namespace for per-group policies, shared between the engine (reads
// and refreshes) and the admin surface (purges on mutation)
const policyCacheName = "policy"

// PolicyCache is a typed view over a CacheStore for per-group policies. The
// JSON encoding lives here so callers trade in *policy.Policy values only.
type PolicyCache struct {
	Store CacheStore
}

func NewPolicyCache(store CacheStore) PolicyCache {
	return PolicyCache{Store: store}
}

// Get returns the cached policy for the group, or nil on a miss. Undecodable
// entries are treated as misses; the caller falls through to the store.
func (c PolicyCache) Get(ctx context.Context, group string) *policy.Policy {
	raw, err := c.Store.Get(ctx, policyCacheName, group)
	if err != nil || raw == "" {
		return nil
	}
	var pol policy.Policy
	if err := json.Unmarshal([]byte(raw), &pol); err != nil {
		return nil
	}
	return &pol
}

func (c PolicyCache) Set(ctx context.Context, group string, pol *policy.Policy) error {
	raw, err := json.Marshal(pol)
	if err != nil {
		return err
	}
	return c.Store.Set(ctx, policyCacheName, group, string(raw))
}

func (c PolicyCache) Purge(ctx context.Context, group string) error {
	return c.Store.Purge(ctx, policyCacheName, group)
}

package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/warden-mod/warden/chatmod/cachestore"
	"github.com/warden-mod/warden/chatmod/configstore"
	"github.com/warden-mod/warden/chatmod/policy"
)

// Admin is the operator surface: every mutation goes through the config
// store and purges the engine's cached policy for the group so the next
// event sees the change.
type Admin struct {
	Store  configstore.Store
	Cache  cachestore.PolicyCache
	Logger *slog.Logger
}

func NewAdmin(store configstore.Store, cache cachestore.CacheStore, logger *slog.Logger) *Admin {
	return &Admin{
		Store:  store,
		Cache:  cachestore.NewPolicyCache(cache),
		Logger: logger,
	}
}

// Status is the operator view of one group: effective policy plus the
// aggregate moderation counters.
type Status struct {
	GroupID string           `json:"group_id"`
	Policy  *policy.Policy   `json:"policy"`
	Stats   map[string]int64 `json:"stats"`
}

func (a *Admin) EnableGroup(ctx context.Context, group string) error {
	return a.mutate(ctx, group, func(pol *policy.Policy) error {
		pol.Enabled = true
		return nil
	})
}

func (a *Admin) DisableGroup(ctx context.Context, group string) error {
	return a.mutate(ctx, group, func(pol *policy.Policy) error {
		pol.Enabled = false
		return nil
	})
}

// SetThreshold updates one named threshold: "content" (float in [0,1]),
// "spam", or "raid" (positive counts).
func (a *Admin) SetThreshold(ctx context.Context, group, name string, value float64) error {
	return a.mutate(ctx, group, func(pol *policy.Policy) error {
		switch name {
		case "content":
			pol.ContentThreshold = value
		case "spam":
			if value != float64(int(value)) {
				return fmt.Errorf("spam threshold must be a whole count: %f", value)
			}
			pol.SpamThreshold = int(value)
		case "raid":
			if value != float64(int(value)) {
				return fmt.Errorf("raid threshold must be a whole count: %f", value)
			}
			pol.RaidThreshold = int(value)
		default:
			return fmt.Errorf("unknown threshold: %s", name)
		}
		return nil
	})
}

func (a *Admin) AllowUser(ctx context.Context, group, user string) error {
	return a.mutate(ctx, group, func(pol *policy.Policy) error {
		pol.AddAllow(user)
		return nil
	})
}

func (a *Admin) UnallowUser(ctx context.Context, group, user string) error {
	return a.mutate(ctx, group, func(pol *policy.Policy) error {
		pol.RemoveAllow(user)
		return nil
	})
}

func (a *Admin) BlockUser(ctx context.Context, group, user string) error {
	return a.mutate(ctx, group, func(pol *policy.Policy) error {
		pol.AddBlock(user)
		return nil
	})
}

func (a *Admin) UnblockUser(ctx context.Context, group, user string) error {
	return a.mutate(ctx, group, func(pol *policy.Policy) error {
		pol.RemoveBlock(user)
		return nil
	})
}

// LiftBan is the explicit admin override for a banned user: escalation state
// goes back to zero and any block list entry is removed.
func (a *Admin) LiftBan(ctx context.Context, group, user string) error {
	if err := a.UnblockUser(ctx, group, user); err != nil {
		return err
	}
	if err := a.Store.PutUserState(ctx, group, user, configstore.NewUserState()); err != nil {
		return fmt.Errorf("resetting user state: %w", err)
	}
	a.Logger.Info("ban lifted", "group", group, "user", user)
	return nil
}

func (a *Admin) GroupStatus(ctx context.Context, group string) (*Status, error) {
	pol, err := a.Store.GetPolicy(ctx, group)
	if err != nil {
		return nil, err
	}
	stats, err := a.Store.GetStats(ctx, group)
	if err != nil {
		return nil, err
	}
	return &Status{
		GroupID: group,
		Policy:  pol,
		Stats:   stats,
	}, nil
}

// mutate runs a read-modify-write on the group's policy, validates the
// result, and purges the cached copy.
func (a *Admin) mutate(ctx context.Context, group string, fn func(*policy.Policy) error) error {
	pol, err := a.Store.GetPolicy(ctx, group)
	if err != nil {
		return fmt.Errorf("loading policy: %w", err)
	}
	if err := fn(pol); err != nil {
		return err
	}
	pol.Normalize()
	if err := pol.Validate(); err != nil {
		return err
	}
	if err := a.Store.PutPolicy(ctx, group, pol); err != nil {
		return fmt.Errorf("storing policy: %w", err)
	}
	if err := a.Cache.Purge(ctx, group); err != nil {
		a.Logger.Warn("policy cache purge failed", "group", group, "err", err)
	}
	return nil
}

package admin

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-mod/warden/chatmod/cachestore"
	"github.com/warden-mod/warden/chatmod/configstore"
	"github.com/warden-mod/warden/chatmod/policy"
)

func newTestAdmin() (*Admin, *configstore.MemStore, cachestore.MemCacheStore) {
	store := configstore.NewMemStore()
	cache := cachestore.NewMemCacheStore(16, time.Minute)
	return NewAdmin(store, cache, slog.Default()), store, cache
}

func TestEnableDisable(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	a, store, _ := newTestAdmin()

	require.NoError(a.DisableGroup(ctx, "g1"))
	pol, err := store.GetPolicy(ctx, "g1")
	require.NoError(err)
	assert.False(pol.Enabled)

	require.NoError(a.EnableGroup(ctx, "g1"))
	pol, err = store.GetPolicy(ctx, "g1")
	require.NoError(err)
	assert.True(pol.Enabled)
}

func TestSetThreshold(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	a, store, _ := newTestAdmin()

	require.NoError(a.SetThreshold(ctx, "g1", "content", 0.8))
	require.NoError(a.SetThreshold(ctx, "g1", "spam", 7))
	require.NoError(a.SetThreshold(ctx, "g1", "raid", 20))

	pol, err := store.GetPolicy(ctx, "g1")
	require.NoError(err)
	assert.Equal(0.8, pol.ContentThreshold)
	assert.Equal(7, pol.SpamThreshold)
	assert.Equal(20, pol.RaidThreshold)

	// invalid values are rejected and leave the policy untouched
	assert.Error(a.SetThreshold(ctx, "g1", "content", 1.5))
	assert.Error(a.SetThreshold(ctx, "g1", "spam", 0))
	assert.Error(a.SetThreshold(ctx, "g1", "spam", 5.5))
	assert.Error(a.SetThreshold(ctx, "g1", "volume", 11))

	pol, err = store.GetPolicy(ctx, "g1")
	require.NoError(err)
	assert.Equal(0.8, pol.ContentThreshold)
	assert.Equal(7, pol.SpamThreshold)
}

func TestListDisjointness(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	a, store, _ := newTestAdmin()

	require.NoError(a.AllowUser(ctx, "g1", "alice"))
	require.NoError(a.BlockUser(ctx, "g1", "alice"))

	pol, err := store.GetPolicy(ctx, "g1")
	require.NoError(err)
	assert.False(pol.InAllowList("alice"))
	assert.True(pol.InBlockList("alice"))

	require.NoError(a.UnblockUser(ctx, "g1", "alice"))
	pol, err = store.GetPolicy(ctx, "g1")
	require.NoError(err)
	assert.False(pol.InBlockList("alice"))
}

func TestMutationPurgesCache(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	a, _, cache := newTestAdmin()

	// simulate the engine having cached a policy for the group
	pc := cachestore.NewPolicyCache(cache)
	require.NoError(pc.Set(ctx, "g1", policy.Default()))

	require.NoError(a.DisableGroup(ctx, "g1"))

	assert.Nil(pc.Get(ctx, "g1"), "stale cached policy must be purged on mutation")
}

func TestLiftBan(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	a, store, _ := newTestAdmin()

	require.NoError(a.BlockUser(ctx, "g1", "villain"))
	st := &configstore.UserState{ViolationCount: 5, EscalationLevel: configstore.LevelBanned}
	require.NoError(store.PutUserState(ctx, "g1", "villain", st))

	require.NoError(a.LiftBan(ctx, "g1", "villain"))

	pol, err := store.GetPolicy(ctx, "g1")
	require.NoError(err)
	assert.False(pol.InBlockList("villain"))

	st, err = store.GetUserState(ctx, "g1", "villain")
	require.NoError(err)
	assert.Equal(configstore.LevelNone, st.EscalationLevel)
	assert.Zero(st.ViolationCount)
}

func TestGroupStatus(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	a, store, _ := newTestAdmin()

	require.NoError(a.SetThreshold(ctx, "g1", "spam", 9))
	require.NoError(store.IncrementStat(ctx, "g1", "spam_blocked", 3))

	status, err := a.GroupStatus(ctx, "g1")
	require.NoError(err)
	assert.Equal("g1", status.GroupID)
	assert.Equal(9, status.Policy.SpamThreshold)
	assert.Equal(int64(3), status.Stats["spam_blocked"])
}

package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/warden-mod/warden/chatmod/cachestore"
	"github.com/warden-mod/warden/chatmod/configstore"
	"github.com/warden-mod/warden/chatmod/detector"
	"github.com/warden-mod/warden/chatmod/event"
	"github.com/warden-mod/warden/chatmod/gateway"
	"github.com/warden-mod/warden/chatmod/policy"
	"github.com/warden-mod/warden/chatmod/tracker"
)

const (
	// lazy escalation reset after this long without a violation
	defaultCooldown = 24 * time.Hour
	// mute duration handed to the gateway for restrict actions
	defaultRestrictDuration = time.Hour
)

// Engine runs the per-event moderation pipeline: de-duplicate, load policy,
// record behavior, fan out to detectors, decide, enforce, audit. One call to
// ProcessEvent handles one event completely; the caller is responsible for
// serializing events sharing a (group, user) key.
type Engine struct {
	Logger  *slog.Logger
	Pool    *detector.Pool
	Tracker *tracker.Tracker
	Store   configstore.Store
	Cache   cachestore.PolicyCache
	Gateway gateway.Gateway

	Cooldown         time.Duration
	RestrictDuration time.Duration
	RetryAttempts    int
	RetryBackoff     time.Duration

	// last policy successfully read from the store, per group; consulted when
	// both the cache and the store are unavailable
	lastGood *xsync.MapOf[string, *policy.Policy]
}

func NewEngine(logger *slog.Logger, pool *detector.Pool, trk *tracker.Tracker, store configstore.Store, cache cachestore.CacheStore, gw gateway.Gateway) *Engine {
	return &Engine{
		Logger:           logger,
		Pool:             pool,
		Tracker:          trk,
		Store:            store,
		Cache:            cachestore.NewPolicyCache(cache),
		Gateway:          gw,
		Cooldown:         defaultCooldown,
		RestrictDuration: defaultRestrictDuration,
		RetryAttempts:    3,
		RetryBackoff:     100 * time.Millisecond,
		lastGood:         xsync.NewMapOf[string, *policy.Policy](),
	}
}

// ProcessEvent is the top-level entrypoint for one event. It never lets a
// fault escape the per-event pipeline: panics are recovered and detector or
// gateway failures degrade instead of propagating.
func (eng *Engine) ProcessEvent(ctx context.Context, evt *event.Event) error {
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("event processing panic", "event", evt.ID, "group", evt.GroupID, "panic", r)
			eventErrorCount.WithLabelValues("panic").Inc()
		}
	}()
	start := time.Now()
	defer func() {
		eventDuration.Observe(time.Since(start).Seconds())
	}()

	if err := evt.Validate(); err != nil {
		eventErrorCount.WithLabelValues("invalid").Inc()
		return err
	}

	log := eng.Logger.With("event", evt.ID, "group", evt.GroupID, "user", evt.UserID, "kind", evt.Kind)

	// at-least-once delivery: an event already audited has already been
	// fully handled
	if seen, err := eng.Store.HasAudit(ctx, evt.ID); err != nil {
		log.Warn("audit dedup check failed, processing anyway", "err", err)
	} else if seen {
		duplicateEventCount.Inc()
		log.Debug("duplicate event dropped")
		return nil
	}

	pol := eng.loadPolicy(ctx, evt.GroupID)

	if !pol.Enabled {
		v := Verdict{Action: ActionAllow, Reason: "moderation disabled for group"}
		return eng.execute(ctx, log, evt, pol, v, nil, time.Now())
	}

	// list membership short-circuits detector evaluation entirely
	if pol.InAllowList(evt.UserID) || pol.InBlockList(evt.UserID) {
		st := eng.loadUserState(ctx, log, evt.GroupID, evt.UserID, evt.Time)
		v := Decide(evt.UserID, nil, pol, st)
		return eng.execute(ctx, log, evt, pol, v, st, time.Now())
	}

	eng.Tracker.Record(evt.GroupID, evt.UserID, evt.Kind, evt.Time)
	snap := eng.Tracker.Snapshot(evt.GroupID, evt.UserID, evt.Time)

	st := eng.loadUserState(ctx, log, evt.GroupID, evt.UserID, evt.Time)
	signals := eng.Pool.Evaluate(ctx, evt, pol, snap)
	v := Decide(evt.UserID, signals, pol, st)

	if evt.Kind == event.KindJoin && snap.GroupJoinRate >= pol.RaidThreshold {
		eng.notifyRaid(ctx, log, evt, snap)
	}

	return eng.execute(ctx, log, evt, pol, v, st, time.Now())
}

// loadPolicy resolves the group's policy through the fallback chain:
// cache, then store (refreshing the cache), then last-known-good, then
// process defaults. The decision path never fails on config reads.
func (eng *Engine) loadPolicy(ctx context.Context, group string) *policy.Policy {
	if pol := eng.Cache.Get(ctx, group); pol != nil {
		return pol
	}

	pol, err := eng.Store.GetPolicy(ctx, group)
	if err == nil {
		eng.lastGood.Store(group, pol)
		if err := eng.Cache.Set(ctx, group, pol); err != nil {
			eng.Logger.Warn("policy cache write failed", "group", group, "err", err)
		}
		return pol
	}
	eng.Logger.Warn("policy load failed", "group", group, "err", err)
	policyFallbackCount.Inc()

	if pol, ok := eng.lastGood.Load(group); ok {
		return pol
	}
	return policy.Default()
}

// loadUserState reads the behavioral record and applies the lazy cool-down
// reset. Store failures degrade to zero state rather than blocking the event.
func (eng *Engine) loadUserState(ctx context.Context, log *slog.Logger, group, user string, now time.Time) *configstore.UserState {
	st, err := eng.Store.GetUserState(ctx, group, user)
	if err != nil {
		log.Warn("user state load failed, using zero state", "err", err)
		return configstore.NewUserState()
	}
	if applyCooldown(st, now, eng.Cooldown) {
		log.Debug("escalation state reset after cool-down")
		if err := eng.Store.PutUserState(ctx, group, user, st); err != nil {
			log.Warn("user state write failed", "err", err)
		}
	}
	return st
}

func (eng *Engine) notifyRaid(ctx context.Context, log *slog.Logger, evt *event.Event, snap tracker.Snapshot) {
	text := "raid suspected: " + evt.GroupID
	if err := eng.Gateway.NotifyAdmin(ctx, evt.GroupID, text); err != nil {
		log.Warn("raid notification failed", "err", err)
	}
	raidNotifyCount.Inc()
	log.Info("raid detected", "groupJoinRate", snap.GroupJoinRate)
}

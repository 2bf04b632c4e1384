package tracker

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/warden-mod/warden/chatmod/event"
)

// Rolling activity counters keyed by (group, user), plus a group-scoped join
// window for raid detection. All state is partitioned by key: recording for
// one key never touches state belonging to another, so the only
// synchronization is the per-window mutex. Old entries are pruned lazily on
// access, never by a background sweep.
type Tracker struct {
	cfg Config

	users  *xsync.MapOf[string, *userWindows]
	groups *xsync.MapOf[string, *window]
}

type Config struct {
	// Lookback for per-user message rates.
	MessageLookback time.Duration
	// Lookback for per-user join rates.
	JoinLookback time.Duration
	// Group-scoped window for raid detection.
	RaidWindow time.Duration
	// Default group join count at which RaidActive reports true. Detectors
	// comparing against per-group policy use Snapshot.GroupJoinRate directly.
	RaidThreshold int
	// Upper bound on retained entries per window.
	WindowCap int
}

func DefaultConfig() Config {
	return Config{
		MessageLookback: 60 * time.Second,
		JoinLookback:    10 * time.Second,
		RaidWindow:      5 * time.Minute,
		RaidThreshold:   10,
		WindowCap:       512,
	}
}

// Immutable view of tracker state for one (group, user) key, taken at a single
// point in time. Detector evaluation consumes snapshots instead of the live
// tracker so that scoring is a pure function of its inputs.
type Snapshot struct {
	MessageRate   int
	UserJoinRate  int
	GroupJoinRate int
}

type userWindows struct {
	messages window
	joins    window
}

type window struct {
	mu    sync.Mutex
	times []int64
}

func New(cfg Config) *Tracker {
	if cfg.WindowCap <= 0 {
		cfg.WindowCap = 512
	}
	return &Tracker{
		cfg:    cfg,
		users:  xsync.NewMapOf[string, *userWindows](),
		groups: xsync.NewMapOf[string, *window](),
	}
}

// Record appends the event to the relevant window(s) and returns the current
// rate for that kind: the count of entries within the lookback, including this
// one. Join events are additionally recorded in the group-scoped raid window.
// Kinds with no tracked window return 0.
func (t *Tracker) Record(group, user string, kind event.Kind, at time.Time) int {
	switch kind {
	case event.KindMessage, event.KindMedia:
		uw := t.userState(group, user)
		return uw.messages.add(at, t.cfg.MessageLookback, t.cfg.WindowCap)
	case event.KindJoin:
		gw, _ := t.groups.LoadOrCompute(group, func() *window { return &window{} })
		gw.add(at, t.cfg.RaidWindow, t.cfg.WindowCap)
		uw := t.userState(group, user)
		return uw.joins.add(at, t.cfg.JoinLookback, t.cfg.WindowCap)
	}
	return 0
}

// Rate is a pure read of the current per-user rate for the kind.
func (t *Tracker) Rate(group, user string, kind event.Kind, now time.Time) int {
	uw, ok := t.users.Load(group + "/" + user)
	if !ok {
		return 0
	}
	switch kind {
	case event.KindMessage, event.KindMedia:
		return uw.messages.count(now, t.cfg.MessageLookback)
	case event.KindJoin:
		return uw.joins.count(now, t.cfg.JoinLookback)
	}
	return 0
}

// JoinRate returns the group-wide join count within the raid window,
// aggregated across all users.
func (t *Tracker) JoinRate(group string, now time.Time) int {
	gw, ok := t.groups.Load(group)
	if !ok {
		return 0
	}
	return gw.count(now, t.cfg.RaidWindow)
}

// RaidActive reports whether the group join rate meets the process-wide raid
// threshold. Policy-aware callers should compare Snapshot.GroupJoinRate
// against the group's own threshold instead.
func (t *Tracker) RaidActive(group string, now time.Time) bool {
	return t.JoinRate(group, now) >= t.cfg.RaidThreshold
}

// Snapshot captures the rates for a (group, user) key at a single instant.
func (t *Tracker) Snapshot(group, user string, now time.Time) Snapshot {
	return Snapshot{
		MessageRate:   t.Rate(group, user, event.KindMessage, now),
		UserJoinRate:  t.Rate(group, user, event.KindJoin, now),
		GroupJoinRate: t.JoinRate(group, now),
	}
}

func (t *Tracker) userState(group, user string) *userWindows {
	uw, _ := t.users.LoadOrCompute(group+"/"+user, func() *userWindows { return &userWindows{} })
	return uw
}

func (w *window) add(at time.Time, lookback time.Duration, cap int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(at, lookback)
	w.times = append(w.times, at.UnixNano())
	if len(w.times) > cap {
		w.times = w.times[len(w.times)-cap:]
	}
	return len(w.times)
}

func (w *window) count(now time.Time, lookback time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now, lookback)
	return len(w.times)
}

func (w *window) prune(now time.Time, lookback time.Duration) {
	cutoff := now.Add(-lookback).UnixNano()
	i := 0
	for i < len(w.times) && w.times[i] <= cutoff {
		i++
	}
	if i > 0 {
		w.times = w.times[i:]
	}
}

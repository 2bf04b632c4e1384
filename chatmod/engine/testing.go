package engine

import (
	"log/slog"
	"time"

	"github.com/warden-mod/warden/chatmod/cachestore"
	"github.com/warden-mod/warden/chatmod/configstore"
	"github.com/warden-mod/warden/chatmod/detector"
	"github.com/warden-mod/warden/chatmod/gateway"
	"github.com/warden-mod/warden/chatmod/scorer"
	"github.com/warden-mod/warden/chatmod/setstore"
	"github.com/warden-mod/warden/chatmod/tracker"
)

// TestFixture bundles an engine wired entirely to in-memory fakes, exposing
// the pieces tests poke at.
type TestFixture struct {
	Engine  *Engine
	Store   *configstore.MemStore
	Gateway *gateway.Recorder
	Scorer  *scorer.Mock
	Tracker *tracker.Tracker
}

// NewTestFixture builds a fully wired in-memory engine with the builtin
// moderation sets, a mock scorer, and fast retries.
func NewTestFixture() *TestFixture {
	logger := slog.Default()
	store := configstore.NewMemStore()
	gw := gateway.NewRecorder()
	sc := &scorer.Mock{Score: 0.0}
	sets := setstore.NewBuiltinSetStore()
	trk := tracker.New(tracker.DefaultConfig())

	pool := detector.NewPool(logger, 100*time.Millisecond,
		&detector.ContentDetector{Scorer: sc},
		&detector.FloodDetector{Sets: sets},
		&detector.SecurityDetector{Sets: sets},
		&detector.CopyrightDetector{Sets: sets},
	)

	eng := NewEngine(logger, pool, trk, store, cachestore.NewMemCacheStore(128, time.Minute), gw)
	eng.RetryAttempts = 2
	eng.RetryBackoff = time.Millisecond

	return &TestFixture{
		Engine:  eng,
		Store:   store,
		Gateway: gw,
		Scorer:  sc,
		Tracker: trk,
	}
}

package configstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-mod/warden/chatmod/policy"
)

func testStoreBasics(t *testing.T, s Store) {
	assert := assert.New(t)
	ctx := context.Background()

	// unknown group returns defaults
	pol, err := s.GetPolicy(ctx, "g1")
	assert.NoError(err)
	assert.Equal(policy.Default(), pol)

	pol.SpamThreshold = 3
	pol.AddBlock("baduser")
	assert.NoError(s.PutPolicy(ctx, "g1", pol))

	got, err := s.GetPolicy(ctx, "g1")
	assert.NoError(err)
	assert.Equal(3, got.SpamThreshold)
	assert.True(got.InBlockList("baduser"))

	// unknown user returns zero state
	st, err := s.GetUserState(ctx, "g1", "u1")
	assert.NoError(err)
	assert.Equal(LevelNone, st.EscalationLevel)
	assert.Equal(0, st.ViolationCount)

	st.ViolationCount = 2
	st.EscalationLevel = LevelWarned
	st.LastViolation = time.Now().UTC().Truncate(time.Second)
	assert.NoError(s.PutUserState(ctx, "g1", "u1", st))

	got2, err := s.GetUserState(ctx, "g1", "u1")
	assert.NoError(err)
	assert.Equal(2, got2.ViolationCount)
	assert.Equal(LevelWarned, got2.EscalationLevel)

	// other keys unaffected
	other, err := s.GetUserState(ctx, "g1", "u2")
	assert.NoError(err)
	assert.Equal(0, other.ViolationCount)
}

func testStoreAuditIdempotency(t *testing.T, s Store) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	rec := &AuditRecord{
		EventID:   "evt-1",
		GroupID:   "g1",
		UserID:    "u1",
		Action:    "warn",
		Reason:    "flood",
		Signals:   []SignalSnapshot{{Kind: "flood", Score: 1.0, Confidence: 1.0}},
		CreatedAt: now,
	}

	has, err := s.HasAudit(ctx, "evt-1")
	assert.NoError(err)
	assert.False(has)

	assert.NoError(s.AppendAudit(ctx, rec))
	// re-delivery of the same event id must not create a second record
	assert.NoError(s.AppendAudit(ctx, rec))

	has, err = s.HasAudit(ctx, "evt-1")
	assert.NoError(err)
	assert.True(has)

	recs, err := s.ListAudit(ctx, "g1", now.Add(-time.Minute))
	assert.NoError(err)
	assert.Len(recs, 1)
	assert.Equal("warn", recs[0].Action)
	assert.Len(recs[0].Signals, 1)

	// since filter
	recs, err = s.ListAudit(ctx, "g1", now.Add(time.Minute))
	assert.NoError(err)
	assert.Len(recs, 0)
}

func testStoreStats(t *testing.T, s Store) {
	assert := assert.New(t)
	ctx := context.Background()

	assert.NoError(s.IncrementStat(ctx, "g1", "messages_processed", 1))
	assert.NoError(s.IncrementStat(ctx, "g1", "messages_processed", 2))
	assert.NoError(s.IncrementStat(ctx, "g1", "spam_blocked", 1))

	stats, err := s.GetStats(ctx, "g1")
	assert.NoError(err)
	assert.Equal(int64(3), stats["messages_processed"])
	assert.Equal(int64(1), stats["spam_blocked"])
}

func TestMemStore(t *testing.T) {
	t.Run("basics", func(t *testing.T) { testStoreBasics(t, NewMemStore()) })
	t.Run("audit", func(t *testing.T) { testStoreAuditIdempotency(t, NewMemStore()) })
	t.Run("stats", func(t *testing.T) { testStoreStats(t, NewMemStore()) })
}

func newTestGormStore(t *testing.T) *GormStore {
	db, err := OpenDatabase("sqlite://:memory:", 1)
	require.NoError(t, err)
	s, err := NewGormStore(db)
	require.NoError(t, err)
	return s
}

func TestGormStore(t *testing.T) {
	t.Run("basics", func(t *testing.T) { testStoreBasics(t, newTestGormStore(t)) })
	t.Run("audit", func(t *testing.T) { testStoreAuditIdempotency(t, newTestGormStore(t)) })
	t.Run("stats", func(t *testing.T) { testStoreStats(t, newTestGormStore(t)) })
}

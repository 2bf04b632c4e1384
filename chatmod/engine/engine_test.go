package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-mod/warden/chatmod/configstore"
	"github.com/warden-mod/warden/chatmod/detector"
	"github.com/warden-mod/warden/chatmod/event"
	"github.com/warden-mod/warden/chatmod/policy"
	"github.com/warden-mod/warden/chatmod/scorer"
)

func message(id, group, user, text string, at time.Time) *event.Event {
	return &event.Event{ID: id, GroupID: group, UserID: user, Time: at, Kind: event.KindMessage, Text: text}
}

func media(id, group, user, filename string, at time.Time) *event.Event {
	return &event.Event{ID: id, GroupID: group, UserID: user, Time: at, Kind: event.KindMedia,
		File:  &event.FileMeta{Name: filename},
		Media: &event.MediaRef{Blob: []byte{0xff, 0xd8}, MimeType: "image/jpeg"},
	}
}

func join(id, group, user string, at time.Time) *event.Event {
	return &event.Event{ID: id, GroupID: group, UserID: user, Time: at, Kind: event.KindJoin}
}

func auditFor(t *testing.T, store *configstore.MemStore, group, eventID string) *configstore.AuditRecord {
	t.Helper()
	recs, err := store.ListAudit(context.Background(), group, time.Time{})
	require.NoError(t, err)
	for _, r := range recs {
		if r.EventID == eventID {
			return r
		}
	}
	t.Fatalf("no audit record for event %s", eventID)
	return nil
}

// A user posting past the spam threshold gets warned and moves to level
// warned; the messages before the threshold are allowed.
func TestFloodEscalatesToWarn(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fix := NewTestFixture()
	base := time.Now()

	for i := 1; i <= 5; i++ {
		evt := message(fmt.Sprintf("evt-%d", i), "g1", "chatty", fmt.Sprintf("note number %d", i), base.Add(time.Duration(i)*time.Second))
		require.NoError(fix.Engine.ProcessEvent(ctx, evt))
	}

	for i := 1; i <= 4; i++ {
		rec := auditFor(t, fix.Store, "g1", fmt.Sprintf("evt-%d", i))
		assert.Equal("allow", rec.Action)
	}
	rec := auditFor(t, fix.Store, "g1", "evt-5")
	assert.Equal("warn", rec.Action)

	st, err := fix.Store.GetUserState(ctx, "g1", "chatty")
	require.NoError(err)
	assert.Equal(configstore.LevelWarned, st.EscalationLevel)
	assert.Equal(1, st.ViolationCount)
	assert.Len(fix.Gateway.CallsFor("notify_admin"), 1)
}

// Media scoring above the content threshold removes the content.
func TestContentRemoval(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fix := NewTestFixture()
	fix.Scorer.Score = 0.75

	evt := media("evt-m1", "g1", "poster", "photo.png", time.Now())
	require.NoError(fix.Engine.ProcessEvent(ctx, evt))

	rec := auditFor(t, fix.Store, "g1", "evt-m1")
	assert.Equal("remove_content", rec.Action)

	dels := fix.Gateway.CallsFor("delete_content")
	require.Len(dels, 1)
	assert.Equal("evt-m1", dels[0].EventID)
}

// A join wave past the raid threshold notifies the admin and elevates the
// flood floor for everyone in the group, including brand-new users.
func TestRaidDetection(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fix := NewTestFixture()
	base := time.Now()

	for i := 1; i <= 12; i++ {
		evt := join(fmt.Sprintf("join-%d", i), "g1", fmt.Sprintf("joiner-%d", i), base.Add(time.Duration(i)*time.Second))
		require.NoError(fix.Engine.ProcessEvent(ctx, evt))
	}
	assert.NotEmpty(fix.Gateway.CallsFor("notify_admin"))

	// a first message from a brand-new user still trips the raid floor
	evt := message("msg-new", "g1", "newcomer", "hello all", base.Add(13*time.Second))
	require.NoError(fix.Engine.ProcessEvent(ctx, evt))

	rec := auditFor(t, fix.Store, "g1", "msg-new")
	assert.Equal("warn", rec.Action)
}

// An event on which every applicable detector abstained is allowed under the
// default policy, and restricted under fail-closed.
func TestAllAbstainFailOpen(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	fix := NewTestFixture()
	stuck := &scorer.Mock{Hook: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	fix.Engine.Pool = detector.NewPool(fix.Engine.Logger, 20*time.Millisecond,
		&detector.ContentDetector{Scorer: stuck},
	)

	evt := media("evt-slow", "g1", "u1", "pic.jpg", time.Now())
	require.NoError(fix.Engine.ProcessEvent(ctx, evt))

	rec := auditFor(t, fix.Store, "g1", "evt-slow")
	assert.Equal("allow", rec.Action)
	assert.Contains(rec.Reason, "abstained")

	// fail-closed group: same situation restricts instead
	closed := policy.Default()
	closed.FailClosed = true
	require.NoError(fix.Store.PutPolicy(ctx, "g2", closed))

	evt = media("evt-slow2", "g2", "u1", "pic.jpg", time.Now())
	require.NoError(fix.Engine.ProcessEvent(ctx, evt))

	rec = auditFor(t, fix.Store, "g2", "evt-slow2")
	assert.Equal("restrict", rec.Action)
	assert.Len(fix.Gateway.CallsFor("restrict_user"), 1)
}

// Block-listed users are banned without a single detector invocation, and a
// redundant ban for an already-banned user is a harmless no-op.
func TestBlockListBan(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fix := NewTestFixture()

	scorerCalls := 0
	fix.Scorer.Hook = func(ctx context.Context) error {
		scorerCalls++
		return nil
	}

	pol := policy.Default()
	pol.AddBlock("villain")
	require.NoError(fix.Store.PutPolicy(ctx, "g1", pol))

	require.NoError(fix.Engine.ProcessEvent(ctx, media("evt-b1", "g1", "villain", "pic.jpg", time.Now())))
	assert.Zero(scorerCalls, "block-listed events must not reach detectors")

	st, err := fix.Store.GetUserState(ctx, "g1", "villain")
	require.NoError(err)
	assert.Equal(configstore.LevelBanned, st.EscalationLevel)

	// duplicate delivery under a new event id: ban issued again, no error
	require.NoError(fix.Engine.ProcessEvent(ctx, media("evt-b2", "g1", "villain", "pic.jpg", time.Now())))
	assert.Len(fix.Gateway.CallsFor("ban_user"), 2)

	st, err = fix.Store.GetUserState(ctx, "g1", "villain")
	require.NoError(err)
	assert.Equal(configstore.LevelBanned, st.EscalationLevel)
}

// Allow-listed users are never actioned, whatever they post.
func TestAllowListShortCircuit(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fix := NewTestFixture()
	fix.Scorer.Score = 0.99

	pol := policy.Default()
	pol.AddAllow("saint")
	require.NoError(fix.Store.PutPolicy(ctx, "g1", pol))

	require.NoError(fix.Engine.ProcessEvent(ctx, media("evt-a1", "g1", "saint", "installer.exe", time.Now())))

	rec := auditFor(t, fix.Store, "g1", "evt-a1")
	assert.Equal("allow", rec.Action)
	assert.Empty(fix.Gateway.Calls())
}

// Redelivering an already-audited event id is dropped without re-enforcement.
func TestDuplicateEventDropped(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fix := NewTestFixture()
	fix.Scorer.Score = 0.9

	evt := media("evt-dup", "g1", "u1", "pic.jpg", time.Now())
	require.NoError(fix.Engine.ProcessEvent(ctx, evt))
	require.NoError(fix.Engine.ProcessEvent(ctx, evt))

	recs, err := fix.Store.ListAudit(ctx, "g1", time.Time{})
	require.NoError(err)
	assert.Len(recs, 1)
	assert.Len(fix.Gateway.CallsFor("delete_content"), 1)
}

// Gateway failures never change the verdict; they surface as action_failed
// in the audit record after retries are exhausted.
func TestGatewayFailureAudited(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fix := NewTestFixture()

	fix.Gateway.FailActions["ban_user"] = true
	fix.Gateway.FailErr = errors.New("gateway down")

	pol := policy.Default()
	pol.AddBlock("villain")
	require.NoError(fix.Store.PutPolicy(ctx, "g1", pol))

	require.NoError(fix.Engine.ProcessEvent(ctx, message("evt-gf", "g1", "villain", "hi", time.Now())))

	rec := auditFor(t, fix.Store, "g1", "evt-gf")
	assert.Equal("ban", rec.Action)
	assert.True(rec.ActionFailed)
	// retried before giving up
	assert.Len(fix.Gateway.CallsFor("ban_user"), fix.Engine.RetryAttempts)
}

// Disabled groups audit everything as allowed and never call the gateway.
func TestDisabledGroup(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fix := NewTestFixture()

	pol := policy.Default()
	pol.Enabled = false
	require.NoError(fix.Store.PutPolicy(ctx, "g1", pol))

	require.NoError(fix.Engine.ProcessEvent(ctx, media("evt-d1", "g1", "u1", "installer.exe", time.Now())))

	rec := auditFor(t, fix.Store, "g1", "evt-d1")
	assert.Equal("allow", rec.Action)
	assert.Contains(rec.Reason, "disabled")
	assert.Empty(fix.Gateway.Calls())
}

// Escalation levels only move forward across successive violations, and the
// cool-down reset brings a quiet user back to level none.
func TestEscalationMonotonicity(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fix := NewTestFixture()
	base := time.Now()

	lastRank := configstore.LevelNone.Rank()
	for i := 1; i <= 6; i++ {
		evt := media(fmt.Sprintf("evt-esc-%d", i), "g1", "offender", "movie.webrip.mkv", base.Add(time.Duration(i)*time.Minute))
		require.NoError(fix.Engine.ProcessEvent(ctx, evt))

		st, err := fix.Store.GetUserState(ctx, "g1", "offender")
		require.NoError(err)
		assert.GreaterOrEqual(st.EscalationLevel.Rank(), lastRank)
		lastRank = st.EscalationLevel.Rank()
	}
	assert.Equal(configstore.LevelBanned.Rank(), lastRank)

	// a different user who went quiet for longer than the cool-down starts over
	st := &configstore.UserState{ViolationCount: 2, EscalationLevel: configstore.LevelRestricted, LastViolation: base.Add(-25 * time.Hour)}
	require.NoError(fix.Store.PutUserState(ctx, "g1", "reformed", st))

	require.NoError(fix.Engine.ProcessEvent(ctx, message("evt-calm", "g1", "reformed", "good morning", base)))
	st, err := fix.Store.GetUserState(ctx, "g1", "reformed")
	require.NoError(err)
	assert.Equal(configstore.LevelNone, st.EscalationLevel)
	assert.Zero(st.ViolationCount)
}

// A dangerous attachment is removed and the sender restricted, ahead of any
// probabilistic signal.
func TestSecurityOutranks(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fix := NewTestFixture()
	fix.Scorer.Score = 0.99 // content would fire too

	require.NoError(fix.Engine.ProcessEvent(ctx, media("evt-sec", "g1", "u1", "invoice.exe", time.Now())))

	rec := auditFor(t, fix.Store, "g1", "evt-sec")
	assert.Equal("remove_and_restrict", rec.Action)
	assert.Contains(rec.Reason, "security")
	assert.Len(fix.Gateway.CallsFor("delete_content"), 1)
	assert.Len(fix.Gateway.CallsFor("restrict_user"), 1)
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/warden-mod/warden/chatmod/configstore"
	"github.com/warden-mod/warden/chatmod/detector"
	"github.com/warden-mod/warden/chatmod/event"
	"github.com/warden-mod/warden/chatmod/policy"
)

// execute turns a verdict into gateway actions, the user-state transition,
// aggregate counters, and exactly one audit record. Gateway calls happen
// before the state write and outside any lock; the verdict is never
// re-computed on gateway failure, only marked action_failed in the audit.
func (eng *Engine) execute(ctx context.Context, log *slog.Logger, evt *event.Event, pol *policy.Policy, v Verdict, st *configstore.UserState, now time.Time) error {
	actionFailed := !eng.applyAction(ctx, log, evt, v)

	if v.Action != ActionAllow && st != nil {
		recordViolation(st, evt.Time)
		if v.Action == ActionBan {
			st.EscalationLevel = configstore.LevelBanned
		}
		if err := eng.Store.PutUserState(ctx, evt.GroupID, evt.UserID, st); err != nil {
			log.Error("user state write failed", "err", err)
		}
	}

	eng.bumpStats(ctx, log, evt.GroupID, v)

	rec := &configstore.AuditRecord{
		ID:                uuid.New().String(),
		EventID:           evt.ID,
		GroupID:           evt.GroupID,
		UserID:            evt.UserID,
		Action:            string(v.Action),
		ActionFailed:      actionFailed,
		EscalationApplied: v.EscalationApplied,
		Reason:            v.Reason,
		Signals:           snapshotSignals(v.Triggering),
		CreatedAt:         now,
	}
	if err := eng.Store.AppendAudit(ctx, rec); err != nil {
		log.Error("audit write failed", "err", err)
		eventErrorCount.WithLabelValues("audit").Inc()
	}

	eventProcessedCount.WithLabelValues(string(v.Action)).Inc()
	log.Info("event processed",
		"action", v.Action,
		"reason", v.Reason,
		"escalated", v.EscalationApplied,
		"actionFailed", actionFailed,
	)
	return nil
}

// applyAction issues the gateway calls for the verdict's action. Returns
// false if any call failed after retries.
func (eng *Engine) applyAction(ctx context.Context, log *slog.Logger, evt *event.Event, v Verdict) bool {
	group, user := evt.GroupID, evt.UserID
	ok := true

	switch v.Action {
	case ActionAllow:
	case ActionWarn:
		text := fmt.Sprintf("warning issued to %s: %s", user, v.Reason)
		ok = eng.callGateway(ctx, log, "notify_admin", func(ctx context.Context) error {
			return eng.Gateway.NotifyAdmin(ctx, group, text)
		})
	case ActionRestrict:
		ok = eng.callGateway(ctx, log, "restrict_user", func(ctx context.Context) error {
			return eng.Gateway.RestrictUser(ctx, group, user, eng.RestrictDuration)
		})
	case ActionRemoveContent:
		ok = eng.callGateway(ctx, log, "delete_content", func(ctx context.Context) error {
			return eng.Gateway.DeleteContent(ctx, group, evt.ID)
		})
		text := fmt.Sprintf("content from %s removed: %s", user, v.Reason)
		ok = eng.callGateway(ctx, log, "notify_admin", func(ctx context.Context) error {
			return eng.Gateway.NotifyAdmin(ctx, group, text)
		}) && ok
	case ActionRemoveAndRestrict:
		ok = eng.callGateway(ctx, log, "delete_content", func(ctx context.Context) error {
			return eng.Gateway.DeleteContent(ctx, group, evt.ID)
		})
		ok = eng.callGateway(ctx, log, "restrict_user", func(ctx context.Context) error {
			return eng.Gateway.RestrictUser(ctx, group, user, eng.RestrictDuration)
		}) && ok
	case ActionBan:
		ok = eng.callGateway(ctx, log, "ban_user", func(ctx context.Context) error {
			return eng.Gateway.BanUser(ctx, group, user)
		})
	}
	return ok
}

// callGateway runs one gateway call with bounded retry and backoff. The
// gateway contract makes redundant calls harmless, so retrying after an
// ambiguous failure is safe.
func (eng *Engine) callGateway(ctx context.Context, log *slog.Logger, name string, fn func(context.Context) error) bool {
	attempts := eng.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(i) * eng.RetryBackoff):
			case <-ctx.Done():
				return false
			}
		}
		if err = fn(ctx); err == nil {
			return true
		}
		log.Warn("gateway call failed", "call", name, "attempt", i+1, "err", err)
	}
	gatewayFailureCount.WithLabelValues(name).Inc()
	log.Error("gateway call exhausted retries", "call", name, "err", err)
	return false
}

func (eng *Engine) bumpStats(ctx context.Context, log *slog.Logger, group string, v Verdict) {
	bump := func(name string) {
		if err := eng.Store.IncrementStat(ctx, group, name, 1); err != nil {
			log.Warn("stat increment failed", "stat", name, "err", err)
		}
	}
	bump("events_processed")
	if v.Action == ActionAllow || len(v.Triggering) == 0 {
		return
	}
	// Triggering is ordered by dominance; the first entry decided the action
	switch v.Triggering[0].Kind {
	case detector.KindContent:
		bump("nsfw_deleted")
	case detector.KindFlood:
		bump("spam_blocked")
	case detector.KindSecurity:
		bump("threats_blocked")
	case detector.KindCopyright:
		bump("copyright_removed")
	}
}

func snapshotSignals(signals []detector.Signal) []configstore.SignalSnapshot {
	if len(signals) == 0 {
		return nil
	}
	out := make([]configstore.SignalSnapshot, len(signals))
	for i, s := range signals {
		out[i] = configstore.SignalSnapshot{
			Kind:       string(s.Kind),
			Score:      s.Score,
			Confidence: s.Confidence,
			Reason:     s.Reason,
			Abstained:  s.Abstained,
		}
	}
	return out
}

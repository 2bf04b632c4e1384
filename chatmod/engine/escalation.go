package engine

import (
	"time"

	"github.com/warden-mod/warden/chatmod/configstore"
)

// applyCooldown performs the lazy reset: a user with no violation inside the
// cool-down window starts over at level none. Returns true if state was
// reset. Banned is terminal and never ages out; lifting a ban is an explicit
// admin override.
func applyCooldown(st *configstore.UserState, now time.Time, cooldown time.Duration) bool {
	if st.EscalationLevel == configstore.LevelNone || st.EscalationLevel == configstore.LevelBanned {
		return false
	}
	if st.LastViolation.IsZero() || now.Sub(st.LastViolation) < cooldown {
		return false
	}
	st.EscalationLevel = configstore.LevelNone
	st.ViolationCount = 0
	return true
}

// recordViolation advances the forward-only escalation machine by one level
// and stamps the violation. The caller persists the state under the per-key
// serialization scope.
func recordViolation(st *configstore.UserState, now time.Time) {
	st.ViolationCount++
	st.EscalationLevel = st.EscalationLevel.Next()
	st.LastViolation = now
	st.LastAction = now
}

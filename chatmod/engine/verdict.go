package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/warden-mod/warden/chatmod/configstore"
	"github.com/warden-mod/warden/chatmod/detector"
	"github.com/warden-mod/warden/chatmod/policy"
)

type Action string

const (
	ActionAllow             = Action("allow")
	ActionWarn              = Action("warn")
	ActionRestrict          = Action("restrict")
	ActionRemoveContent     = Action("remove_content")
	ActionRemoveAndRestrict = Action("remove_and_restrict")
	ActionBan               = Action("ban")
)

// escalated returns the action one severity step up. Ban is terminal.
func (a Action) escalated() Action {
	switch a {
	case ActionWarn:
		return ActionRestrict
	case ActionRestrict:
		return ActionRemoveAndRestrict
	case ActionRemoveContent:
		return ActionRemoveAndRestrict
	case ActionRemoveAndRestrict:
		return ActionBan
	}
	return a
}

// Verdict is the engine's decision for one event, consumed immediately by the
// enforcement step and then frozen into the audit record.
type Verdict struct {
	Action            Action
	Triggering        []detector.Signal
	EscalationApplied bool
	Reason            string
}

// Escalation overlay kicks in once the violation count passes this.
const escalationOverlayCount = 3

// Decide aggregates detector signals, policy, and the user's behavioral
// snapshot into a verdict. It is a pure function: same inputs, same verdict.
// No clock reads, no randomness, no I/O.
func Decide(user string, signals []detector.Signal, pol *policy.Policy, st *configstore.UserState) Verdict {
	if pol.InAllowList(user) {
		return Verdict{Action: ActionAllow, Reason: "allow-listed user"}
	}
	if pol.InBlockList(user) {
		return Verdict{Action: ActionBan, Reason: "block-listed user"}
	}

	var live []detector.Signal
	var abstained []string
	for _, s := range signals {
		if s.Abstained {
			abstained = append(abstained, string(s.Kind))
			continue
		}
		live = append(live, s)
	}

	if len(live) == 0 {
		if len(abstained) > 0 {
			reason := "all detectors abstained: " + strings.Join(abstained, ", ")
			if pol.FailClosed {
				return Verdict{Action: ActionRestrict, Reason: reason + " (fail-closed)"}
			}
			return Verdict{Action: ActionAllow, Reason: reason + " (fail-open)"}
		}
		return Verdict{Action: ActionAllow, Reason: "no signals"}
	}

	fired := firedSignals(live, pol)
	if len(fired) == 0 {
		return Verdict{Action: ActionAllow, Reason: "no detector fired"}
	}

	// order by dominance so the winning signal leads the audit trail and the
	// ordering does not depend on detector completion order
	sort.SliceStable(fired, func(i, j int) bool {
		return severityRank(fired[i]) > severityRank(fired[j])
	})
	winner := fired[0]
	action := baseAction(winner.Kind, st)
	reason := fmt.Sprintf("%s: %s", winner.Kind, winner.Reason)

	escalated := false
	if st.ViolationCount > escalationOverlayCount {
		action = action.escalated()
		escalated = true
		reason += fmt.Sprintf(" (repeat offender, %d violations)", st.ViolationCount)
	}

	return Verdict{
		Action:            action,
		Triggering:        fired,
		EscalationApplied: escalated,
		Reason:            reason,
	}
}

// firedSignals filters to signals at or above their kind's policy threshold.
// Exact-match kinds fire only at 1.0; flood fires at the saturated score.
func firedSignals(live []detector.Signal, pol *policy.Policy) []detector.Signal {
	var fired []detector.Signal
	for _, s := range live {
		if s.Score >= kindThreshold(s.Kind, pol) {
			fired = append(fired, s)
		}
	}
	return fired
}

func kindThreshold(k detector.Kind, pol *policy.Policy) float64 {
	switch k {
	case detector.KindContent:
		return pol.ContentThreshold
	default:
		// flood scores are already normalized against the spam/raid
		// thresholds; exact-match kinds only emit 0.0 or 1.0
		return 1.0
	}
}

// severityRank orders signals: exact-match kinds outrank probabilistic ones,
// security outranks copyright, and among probabilistic kinds the higher score
// wins (content over flood on an exact tie).
func severityRank(s detector.Signal) float64 {
	if s.Kind.Exact() {
		if s.Kind == detector.KindSecurity {
			return 40
		}
		return 30
	}
	switch s.Kind {
	case detector.KindContent:
		return 10 + s.Score + 0.0001
	case detector.KindFlood:
		return 10 + s.Score
	}
	return 0
}

// baseAction maps the winning detector kind to the action before the
// escalation overlay. Flood starts soft and hardens with the user's level.
func baseAction(k detector.Kind, st *configstore.UserState) Action {
	switch k {
	case detector.KindContent:
		return ActionRemoveContent
	case detector.KindFlood:
		if st.EscalationLevel == configstore.LevelNone {
			return ActionWarn
		}
		return ActionRestrict
	case detector.KindSecurity:
		return ActionRemoveAndRestrict
	case detector.KindCopyright:
		return ActionRemoveContent
	}
	return ActionAllow
}

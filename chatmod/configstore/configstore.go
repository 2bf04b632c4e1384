package configstore

import (
	"context"
	"time"

	"github.com/warden-mod/warden/chatmod/policy"
)

// Store is the persistence boundary for per-group policy, per-user behavioral
// state, aggregate counters, and the append-only audit log. The decision path
// never blocks on store writes failing; the engine falls back to cached or
// default policy on read errors.
type Store interface {
	// GetPolicy returns the group's policy, or defaults if the group has
	// never been configured. The returned value is a private copy.
	GetPolicy(ctx context.Context, group string) (*policy.Policy, error)
	PutPolicy(ctx context.Context, group string, pol *policy.Policy) error

	// GetUserState returns the behavioral record for (group, user), or a zero
	// state if none exists. The returned value is a private copy.
	GetUserState(ctx context.Context, group, user string) (*UserState, error)
	PutUserState(ctx context.Context, group, user string, st *UserState) error

	// AppendAudit writes one audit record. Writes are idempotent keyed by
	// EventID: re-appending for an already-audited event is a silent no-op.
	AppendAudit(ctx context.Context, rec *AuditRecord) error
	// HasAudit reports whether an audit record already exists for the event.
	HasAudit(ctx context.Context, eventID string) (bool, error)
	ListAudit(ctx context.Context, group string, since time.Time) ([]*AuditRecord, error)

	// IncrementStat bumps a named per-group aggregate counter.
	IncrementStat(ctx context.Context, group, name string, delta int64) error
	GetStats(ctx context.Context, group string) (map[string]int64, error)
}

// Escalation level for a (group, user) pair. Levels only advance forward,
// except for the explicit cool-down reset back to none.
type Level string

const (
	LevelNone       = Level("none")
	LevelWarned     = Level("warned")
	LevelRestricted = Level("restricted")
	LevelRemoved    = Level("removed")
	LevelBanned     = Level("banned")
)

var levelRank = map[Level]int{
	LevelNone:       0,
	LevelWarned:     1,
	LevelRestricted: 2,
	LevelRemoved:    3,
	LevelBanned:     4,
}

func (l Level) Rank() int {
	return levelRank[l]
}

// Next returns the level one step further along the escalation ladder.
// Banned is terminal.
func (l Level) Next() Level {
	switch l {
	case LevelNone:
		return LevelWarned
	case LevelWarned:
		return LevelRestricted
	case LevelRestricted:
		return LevelRemoved
	default:
		return LevelBanned
	}
}

// Per (group, user) behavioral record. Created lazily on first violation;
// aged back to zero state by the cool-down reset.
type UserState struct {
	ViolationCount  int       `json:"violation_count"`
	EscalationLevel Level     `json:"escalation_level"`
	LastViolation   time.Time `json:"last_violation,omitzero"`
	LastAction      time.Time `json:"last_action,omitzero"`
}

func NewUserState() *UserState {
	return &UserState{EscalationLevel: LevelNone}
}

// Frozen copy of one detector signal, embedded in audit records.
type SignalSnapshot struct {
	Kind       string  `json:"kind"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
	Abstained  bool    `json:"abstained,omitempty"`
}

// One immutable audit log entry. Exactly one record exists per processed
// event, including events which were allowed.
type AuditRecord struct {
	ID                string           `json:"id"`
	EventID           string           `json:"event_id"`
	GroupID           string           `json:"group_id"`
	UserID            string           `json:"user_id"`
	Action            string           `json:"action"`
	ActionFailed      bool             `json:"action_failed,omitempty"`
	EscalationApplied bool             `json:"escalation_applied,omitempty"`
	Reason            string           `json:"reason,omitempty"`
	Signals           []SignalSnapshot `json:"signals,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

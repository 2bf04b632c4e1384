package gateway

import (
	"context"
	"sync"
	"time"
)

// Call is one recorded gateway invocation.
type Call struct {
	Action  string
	GroupID string
	UserID  string
	EventID string
	Text    string
}

// Recorder is a Gateway implementation for tests: it records every call and
// can be primed to fail specific actions.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	// actions (eg "ban_user") which should return FailErr
	FailActions map[string]bool
	FailErr     error
}

var _ Gateway = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{FailActions: make(map[string]bool)}
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if r.FailActions[c.Action] {
		return r.FailErr
	}
	return nil
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

func (r *Recorder) CallsFor(action string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) DeleteContent(ctx context.Context, group, eventID string) error {
	return r.record(Call{Action: "delete_content", GroupID: group, EventID: eventID})
}

func (r *Recorder) RestrictUser(ctx context.Context, group, user string, duration time.Duration) error {
	return r.record(Call{Action: "restrict_user", GroupID: group, UserID: user})
}

func (r *Recorder) RemoveUser(ctx context.Context, group, user string) error {
	return r.record(Call{Action: "remove_user", GroupID: group, UserID: user})
}

func (r *Recorder) BanUser(ctx context.Context, group, user string) error {
	return r.record(Call{Action: "ban_user", GroupID: group, UserID: user})
}

func (r *Recorder) NotifyAdmin(ctx context.Context, group, text string) error {
	return r.record(Call{Action: "notify_admin", GroupID: group, Text: text})
}

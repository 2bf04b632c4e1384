package detector

import (
	"context"

	"github.com/warden-mod/warden/chatmod/event"
	"github.com/warden-mod/warden/chatmod/policy"
	"github.com/warden-mod/warden/chatmod/tracker"
)

// Kind identifies a detector family. Security and copyright detectors do
// exact matching against curated sets; content and flood detectors produce
// probabilistic scores.
type Kind string

const (
	KindContent   = Kind("content")
	KindFlood     = Kind("flood")
	KindSecurity  = Kind("security")
	KindCopyright = Kind("copyright")
)

// Exact reports whether signals of this kind come from exact matching rather
// than probabilistic scoring. Exact signals outrank probabilistic ones when a
// verdict has to pick a single dominant signal.
func (k Kind) Exact() bool {
	return k == KindSecurity || k == KindCopyright
}

// Signal is one detector's judgement of one event. A score of 0 means "looked,
// found nothing"; Abstained means "could not look" (timeout, upstream error,
// panic) and is treated differently by the engine's fail-open/fail-closed
// handling.
type Signal struct {
	Kind       Kind    `json:"kind"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
	Abstained  bool    `json:"abstained,omitempty"`
}

func abstain(kind Kind, reason string) Signal {
	return Signal{Kind: kind, Abstained: true, Reason: reason}
}

type Detector interface {
	Kind() Kind
	// Applicable must be cheap and side-effect free; inapplicable detectors
	// are never scheduled for the event.
	Applicable(evt *event.Event) bool
	// Evaluate scores the event. It must respect ctx's deadline; a returned
	// error (or an expired ctx) becomes an abstained signal.
	Evaluate(ctx context.Context, evt *event.Event, pol *policy.Policy, snap tracker.Snapshot) (Signal, error)
}

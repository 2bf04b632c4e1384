package detector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/warden-mod/warden/chatmod/event"
	"github.com/warden-mod/warden/chatmod/policy"
	"github.com/warden-mod/warden/chatmod/tracker"
)

// Pool fans one event out to every applicable detector concurrently and
// collects their signals. Each detector gets its own deadline; a detector
// which times out, errors, or panics contributes an abstained signal instead
// of blocking or failing the event. A laggard past its deadline is abandoned
// (its context is cancelled and its result discarded).
type Pool struct {
	Detectors []Detector
	Timeout   time.Duration
	Logger    *slog.Logger
}

func NewPool(logger *slog.Logger, timeout time.Duration, detectors ...Detector) *Pool {
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	return &Pool{
		Detectors: detectors,
		Timeout:   timeout,
		Logger:    logger,
	}
}

// Evaluate returns exactly one signal per applicable detector, in no
// particular order. It never takes longer than the per-detector timeout plus
// scheduling slack.
func (p *Pool) Evaluate(ctx context.Context, evt *event.Event, pol *policy.Policy, snap tracker.Snapshot) []Signal {
	var applicable []Detector
	for _, d := range p.Detectors {
		if d.Applicable(evt) {
			applicable = append(applicable, d)
		}
	}
	if len(applicable) == 0 {
		return nil
	}

	results := make(chan Signal, len(applicable))
	for _, d := range applicable {
		go p.runOne(ctx, d, evt, pol, snap, results)
	}

	out := make([]Signal, 0, len(applicable))
	for range applicable {
		out = append(out, <-results)
	}
	return out
}

// runOne always delivers exactly one signal to results, within the timeout.
func (p *Pool) runOne(ctx context.Context, d Detector, evt *event.Event, pol *policy.Policy, snap tracker.Snapshot, results chan<- Signal) {
	dctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	inner := make(chan Signal, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.Logger.Error("detector panic", "detector", d.Kind(), "event", evt.ID, "panic", r)
				inner <- abstain(d.Kind(), fmt.Sprintf("detector panic: %v", r))
			}
		}()
		sig, err := d.Evaluate(dctx, evt, pol, snap)
		if err != nil {
			p.Logger.Warn("detector failed", "detector", d.Kind(), "event", evt.ID, "err", err)
			inner <- abstain(d.Kind(), err.Error())
			return
		}
		inner <- sig
	}()

	select {
	case sig := <-inner:
		outcome := "ok"
		if sig.Abstained {
			outcome = "abstain"
		}
		detectorOutcomes.WithLabelValues(string(d.Kind()), outcome).Inc()
		results <- sig
	case <-dctx.Done():
		detectorOutcomes.WithLabelValues(string(d.Kind()), "timeout").Inc()
		p.Logger.Warn("detector deadline exceeded", "detector", d.Kind(), "event", evt.ID, "timeout", p.Timeout)
		results <- abstain(d.Kind(), "deadline exceeded")
	}
}

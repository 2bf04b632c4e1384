package detector

import (
	"context"

	"github.com/warden-mod/warden/chatmod/event"
	"github.com/warden-mod/warden/chatmod/policy"
	"github.com/warden-mod/warden/chatmod/scorer"
	"github.com/warden-mod/warden/chatmod/tracker"
)

// ContentDetector scores media payloads against an external image classifier.
// It is the only detector which leaves the process, so it is the usual source
// of timeouts and abstentions.
type ContentDetector struct {
	Scorer scorer.Scorer
}

var _ Detector = (*ContentDetector)(nil)

func (d *ContentDetector) Kind() Kind {
	return KindContent
}

func (d *ContentDetector) Applicable(evt *event.Event) bool {
	return evt.Kind == event.KindMedia && evt.Media != nil
}

func (d *ContentDetector) Evaluate(ctx context.Context, evt *event.Event, pol *policy.Policy, snap tracker.Snapshot) (Signal, error) {
	score, err := d.Scorer.ScoreImage(ctx, evt.Media.Blob, evt.Media.MimeType)
	if err != nil {
		return Signal{}, err
	}
	return Signal{
		Kind:       KindContent,
		Score:      score,
		Confidence: score,
		Reason:     "image classifier score",
	}, nil
}

package detector

import (
	"context"
	"fmt"
	"strings"

	"github.com/warden-mod/warden/chatmod/event"
	"github.com/warden-mod/warden/chatmod/helpers"
	"github.com/warden-mod/warden/chatmod/policy"
	"github.com/warden-mod/warden/chatmod/setstore"
	"github.com/warden-mod/warden/chatmod/tracker"
)

// FloodDetector scores message-rate spam and join-rate raids from the tracker
// snapshot, plus cheap text heuristics (shouting, repetition, spam keywords,
// shortener links) for message events. Scoring is a pure function of the
// event, policy, and snapshot.
type FloodDetector struct {
	Sets setstore.SetStore
}

var _ Detector = (*FloodDetector)(nil)

// Score floor applied while the group join rate has crossed the raid
// threshold: activity in a raid wave is suspect even when the individual
// user's own rates look tame. Pinned to the firing score so raid-window
// events always produce at least a warn.
const raidFloor = 1.0

func (d *FloodDetector) Kind() Kind {
	return KindFlood
}

func (d *FloodDetector) Applicable(evt *event.Event) bool {
	switch evt.Kind {
	case event.KindMessage, event.KindMedia, event.KindJoin:
		return true
	}
	return false
}

func (d *FloodDetector) Evaluate(ctx context.Context, evt *event.Event, pol *policy.Policy, snap tracker.Snapshot) (Signal, error) {
	if evt.Kind == event.KindJoin {
		return d.scoreJoin(pol, snap), nil
	}
	return d.scoreMessage(ctx, evt, pol, snap)
}

func (d *FloodDetector) scoreJoin(pol *policy.Policy, snap tracker.Snapshot) Signal {
	score := saturate(float64(snap.GroupJoinRate) / float64(pol.RaidThreshold))
	reason := fmt.Sprintf("group join rate %d/%d", snap.GroupJoinRate, pol.RaidThreshold)
	if snap.GroupJoinRate >= pol.RaidThreshold && score < raidFloor {
		score = raidFloor
	}
	return Signal{
		Kind:       KindFlood,
		Score:      score,
		Confidence: score,
		Reason:     reason,
	}
}

func (d *FloodDetector) scoreMessage(ctx context.Context, evt *event.Event, pol *policy.Policy, snap tracker.Snapshot) (Signal, error) {
	score := saturate(float64(snap.MessageRate) / float64(pol.SpamThreshold))
	reason := fmt.Sprintf("message rate %d/%d", snap.MessageRate, pol.SpamThreshold)

	text, err := d.scoreText(ctx, evt.Text)
	if err != nil {
		return Signal{}, err
	}
	if text > 0 {
		score = saturate(score + text)
		reason += ", spammy text"
	}

	if snap.GroupJoinRate >= pol.RaidThreshold && score < raidFloor {
		score = raidFloor
		reason += ", raid active"
	}

	return Signal{
		Kind:       KindFlood,
		Score:      score,
		Confidence: score,
		Reason:     reason,
	}, nil
}

// scoreText applies the additive text heuristics: sustained shouting,
// word repetition, known spam keywords, and link-shortener domains.
func (d *FloodDetector) scoreText(ctx context.Context, text string) (float64, error) {
	if text == "" {
		return 0, nil
	}
	var score float64

	if len(text) > 10 && helpers.CapsRatio(text) > 0.7 {
		score += 0.3
	}
	if helpers.RepetitionRatio(text) > 0.7 {
		score += 0.3
	}

	for _, word := range strings.Fields(strings.ToLower(text)) {
		hit, err := d.Sets.InSet(ctx, setstore.SetSuspiciousKeywords, strings.Trim(word, ".,!?:;\"'"))
		if err != nil {
			return 0, err
		}
		if hit {
			score += 0.2
			break
		}
	}

	for _, u := range helpers.ExtractTextURLs(text) {
		hit, err := d.Sets.InSet(ctx, setstore.SetBlockedDomains, helpers.ExtractDomain(u))
		if err != nil {
			return 0, err
		}
		if hit {
			score += 0.2
			break
		}
	}

	return score, nil
}

func saturate(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < 0 {
		return 0
	}
	return v
}

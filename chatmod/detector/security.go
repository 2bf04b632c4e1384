package detector

import (
	"context"

	"github.com/warden-mod/warden/chatmod/event"
	"github.com/warden-mod/warden/chatmod/helpers"
	"github.com/warden-mod/warden/chatmod/policy"
	"github.com/warden-mod/warden/chatmod/setstore"
	"github.com/warden-mod/warden/chatmod/tracker"
)

// SecurityDetector does exact matching of file extensions and link domains
// against the curated security sets. It emits only 0.0 or 1.0: there is no
// probabilistic judgement at this layer.
type SecurityDetector struct {
	Sets setstore.SetStore
}

var _ Detector = (*SecurityDetector)(nil)

func (d *SecurityDetector) Kind() Kind {
	return KindSecurity
}

func (d *SecurityDetector) Applicable(evt *event.Event) bool {
	switch evt.Kind {
	case event.KindMessage, event.KindMedia:
		return evt.File != nil || evt.Text != ""
	}
	return false
}

func (d *SecurityDetector) Evaluate(ctx context.Context, evt *event.Event, pol *policy.Policy, snap tracker.Snapshot) (Signal, error) {
	if pol.AutoDeleteExecutables && evt.File != nil {
		ext := helpers.FileExt(evt.File.Name)
		if ext != "" {
			hit, err := d.Sets.InSet(ctx, setstore.SetDangerousExtensions, ext)
			if err != nil {
				return Signal{}, err
			}
			if hit {
				return Signal{
					Kind:       KindSecurity,
					Score:      1.0,
					Confidence: 1.0,
					Reason:     "dangerous file extension " + ext,
				}, nil
			}
		}
	}

	if pol.BlockSuspiciousLinks && evt.Text != "" {
		for _, u := range helpers.ExtractTextURLs(evt.Text) {
			if helpers.IsIPLiteralURL(u) {
				return Signal{
					Kind:       KindSecurity,
					Score:      1.0,
					Confidence: 1.0,
					Reason:     "raw IP address link",
				}, nil
			}
			domain := helpers.ExtractDomain(u)
			if domain == "" {
				continue
			}
			hit, err := d.Sets.InSet(ctx, setstore.SetBlockedDomains, domain)
			if err != nil {
				return Signal{}, err
			}
			if hit {
				return Signal{
					Kind:       KindSecurity,
					Score:      1.0,
					Confidence: 1.0,
					Reason:     "blocked link domain " + domain,
				}, nil
			}
		}
	}

	return Signal{Kind: KindSecurity, Score: 0.0, Confidence: 1.0}, nil
}

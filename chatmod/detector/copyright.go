package detector

import (
	"context"
	"regexp"
	"strings"

	"github.com/warden-mod/warden/chatmod/event"
	"github.com/warden-mod/warden/chatmod/policy"
	"github.com/warden-mod/warden/chatmod/setstore"
	"github.com/warden-mod/warden/chatmod/tracker"
)

// CopyrightDetector matches media filenames and message text against the
// copyright keyword set and scene-release naming patterns. Exact matching
// only; scores are 0.0 or 1.0.
type CopyrightDetector struct {
	Sets setstore.SetStore
}

var _ Detector = (*CopyrightDetector)(nil)

// Scene-release naming conventions: episode markers, resolutions, rip
// sources, codecs.
var releasePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bs\d{1,2}e\d{1,3}\b`),
	regexp.MustCompile(`(?i)\b(720p|1080p|2160p|4k)\b`),
	regexp.MustCompile(`(?i)\b(webrip|web-dl|hdrip|dvdrip|bdrip|bluray|brrip|camrip|hdtv)\b`),
	regexp.MustCompile(`(?i)\b(x264|x265|h264|h265|hevc|xvid)\b`),
}

func (d *CopyrightDetector) Kind() Kind {
	return KindCopyright
}

func (d *CopyrightDetector) Applicable(evt *event.Event) bool {
	switch evt.Kind {
	case event.KindMessage, event.KindMedia:
		return (evt.File != nil && evt.File.Name != "") || evt.Text != ""
	}
	return false
}

func (d *CopyrightDetector) Evaluate(ctx context.Context, evt *event.Event, pol *policy.Policy, snap tracker.Snapshot) (Signal, error) {
	if !pol.CopyrightDetection {
		return Signal{Kind: KindCopyright, Score: 0.0, Confidence: 1.0}, nil
	}

	var texts []string
	if evt.File != nil && evt.File.Name != "" {
		texts = append(texts, evt.File.Name)
	}
	if evt.Text != "" {
		texts = append(texts, evt.Text)
	}

	for _, text := range texts {
		for _, tok := range tokenize(text) {
			hit, err := d.Sets.InSet(ctx, setstore.SetCopyrightKeywords, tok)
			if err != nil {
				return Signal{}, err
			}
			if hit {
				return Signal{
					Kind:       KindCopyright,
					Score:      1.0,
					Confidence: 1.0,
					Reason:     "copyright keyword " + tok,
				}, nil
			}
		}
		for _, re := range releasePatterns {
			if m := re.FindString(text); m != "" {
				return Signal{
					Kind:       KindCopyright,
					Score:      1.0,
					Confidence: 1.0,
					Reason:     "release naming pattern " + strings.ToLower(m),
				}, nil
			}
		}
	}

	return Signal{Kind: KindCopyright, Score: 0.0, Confidence: 1.0}, nil
}

// tokenize splits on the separators common in filenames and prose.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '.', '-', '_', '[', ']', '(', ')', ',', ';':
			return true
		}
		return false
	})
}

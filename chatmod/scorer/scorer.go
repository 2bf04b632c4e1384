package scorer

import (
	"context"
)

// Scorer is the boundary to the external explicit-content classifier. The
// implementation is opaque to the engine: bytes go in, a probability comes
// out. Calls must complete (or be cancelled) within the detector deadline;
// errors and timeouts surface as content-detector abstentions, never as
// violations.
type Scorer interface {
	// ScoreImage returns the classifier probability in [0,1] that the image
	// is explicit (0 = clean, 1 = certain violation).
	ScoreImage(ctx context.Context, data []byte, mimeType string) (float64, error)
}

// Mock scorer with a fixed response, for tests.
type Mock struct {
	Score float64
	Err   error
	// optional per-call hook, eg to block until ctx cancellation
	Hook func(ctx context.Context) error
}

var _ Scorer = (*Mock)(nil)

func (m *Mock) ScoreImage(ctx context.Context, data []byte, mimeType string) (float64, error) {
	if m.Hook != nil {
		if err := m.Hook(ctx); err != nil {
			return 0, err
		}
	}
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Score, nil
}

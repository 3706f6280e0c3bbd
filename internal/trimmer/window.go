package trimmer

import (
	"math"

	"github.com/pkg/errors"
)

// TimeWindow is a trim range in seconds of source time.
type TimeWindow struct {
	Start float64 `json:"startTime"`
	End   float64 `json:"endTime"`
}

// Duration returns End - Start.
func (w TimeWindow) Duration() float64 {
	return w.End - w.Start
}

// checkShape verifies 0 <= start < end with finite values.
func (w TimeWindow) checkShape() error {
	switch {
	case math.IsNaN(w.Start) || math.IsNaN(w.End) || math.IsInf(w.Start, 0) || math.IsInf(w.End, 0):
		return errors.Wrapf(ErrInvalidWindow, "non-finite bounds [%v, %v]", w.Start, w.End)
	case w.Start < 0:
		return errors.Wrapf(ErrInvalidWindow, "start %.3fs is negative", w.Start)
	case w.End <= w.Start:
		return errors.Wrapf(ErrInvalidWindow, "end %.3fs is not after start %.3fs", w.End, w.Start)
	}
	return nil
}

// durationSlack absorbs float noise when comparing against limits.
const durationSlack = 1e-6

// ValidateWindow applies the caller policy for a trim request: the window must
// lie inside [0, sourceDuration] and last at most maxClip seconds. A
// non-positive sourceDuration or maxClip disables that check.
func ValidateWindow(w TimeWindow, sourceDuration, maxClip float64) error {
	if err := w.checkShape(); err != nil {
		return err
	}
	if sourceDuration > 0 && w.End > sourceDuration+durationSlack {
		return errors.Wrapf(ErrInvalidWindow, "end %.3fs is past the source duration %.3fs", w.End, sourceDuration)
	}
	if maxClip > 0 && w.Duration() > maxClip+durationSlack {
		return errors.Wrapf(ErrInvalidWindow, "clip of %.3fs exceeds the %.3fs maximum", w.Duration(), maxClip)
	}
	return nil
}

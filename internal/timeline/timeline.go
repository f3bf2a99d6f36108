package timeline

import (
	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/internal/metadata"
)

// DefaultBufferSeconds is the background tail kept after the last line ends.
const DefaultBufferSeconds = 10.0

// Timeline is derived from a segment's cumulative timestamps.
type Timeline struct {
	Durations []float64
	// End is the last timestamp plus the buffer.
	End float64
}

// Derive turns cumulative end timestamps into per-line durations.
// durations[0] is timestamps[0] and durations[i] is timestamps[i]-timestamps[i-1].
func Derive(timestamps []float64, bufferSeconds float64) (Timeline, error) {
	if len(timestamps) == 0 {
		return Timeline{}, apperr.New(apperr.ErrInvalidTimeline, "timestamps are empty")
	}

	durations := make([]float64, len(timestamps))
	prev := 0.0
	for i, ts := range timestamps {
		d := ts - prev
		if d < 0 {
			return Timeline{}, apperr.New(apperr.ErrInvalidTimeline,
				"timestamp %d (%g) precedes previous value %g", i, ts, prev).
				WithContext("index", i)
		}
		durations[i] = d
		prev = ts
	}

	return Timeline{
		Durations: durations,
		End:       timestamps[len(timestamps)-1] + bufferSeconds,
	}, nil
}

// Window is the half-open interval [Start, End) during which Speaker is shown.
type Window struct {
	Speaker metadata.Speaker
	Start   float64
	End     float64
}

// Windows lays the speakers out back to back from start. When end > 0, windows
// are clipped to it and windows that would begin at or after it are dropped.
func Windows(durations []float64, person []metadata.Speaker, start, end float64) ([]Window, error) {
	if len(durations) != len(person) {
		return nil, apperr.New(apperr.ErrLengthMismatch,
			"durations (%d) and person (%d) differ in length", len(durations), len(person))
	}

	windows := make([]Window, 0, len(durations))
	cursor := start
	for i, d := range durations {
		if !person[i].Valid() {
			return nil, apperr.New(apperr.ErrInputValidation, "line %d has unknown speaker %q", i, person[i])
		}
		w := Window{Speaker: person[i], Start: cursor, End: cursor + d}
		cursor = w.End

		if end > 0 {
			if w.Start >= end {
				break
			}
			if w.End > end {
				w.End = end
			}
		}
		if w.End > w.Start {
			windows = append(windows, w)
		}
	}
	return windows, nil
}

// VisibleAt returns the speaker shown at playback time t, if any.
func VisibleAt(windows []Window, t float64) (metadata.Speaker, bool) {
	for _, w := range windows {
		if t >= w.Start && t < w.End {
			return w.Speaker, true
		}
	}
	return "", false
}

// BySpeaker groups windows per speaker, preserving order.
func BySpeaker(windows []Window) map[metadata.Speaker][]Window {
	out := make(map[metadata.Speaker][]Window, 2)
	for _, w := range windows {
		out[w.Speaker] = append(out[w.Speaker], w)
	}
	return out
}

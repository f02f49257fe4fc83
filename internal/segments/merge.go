package segments

import (
	"strings"
	"time"

	"dubflow/internal/session"
)

// Merge combines consecutive same-speaker segments when the silence between
// them is below maxSilence, producing fewer and longer segments for smoother
// synthesis. The merged segment keeps the first segment's ID and speaker and
// spans from the first start to the last end.
func Merge(segs []session.Segment, maxSilence time.Duration) []session.Segment {
	if len(segs) <= 1 {
		return append([]session.Segment(nil), segs...)
	}

	gap := maxSilence.Seconds()
	merged := make([]session.Segment, 0, len(segs))
	current := segs[0]

	for _, seg := range segs[1:] {
		silence := seg.Start - current.End
		if seg.Speaker == current.Speaker && silence >= 0 && silence <= gap {
			current.End = seg.End
			current.Text = joinText(current.Text, seg.Text)
			current.TranslatedText = joinText(current.TranslatedText, seg.TranslatedText)
			continue
		}
		merged = append(merged, current)
		current = seg
	}
	return append(merged, current)
}

func joinText(a, b string) string {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

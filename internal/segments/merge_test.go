package segments_test

import (
	"testing"
	"time"

	"dubflow/internal/segments"
	"dubflow/internal/session"
)

func TestMergeJoinsSameSpeakerWithinGap(t *testing.T) {
	segs := []session.Segment{
		{ID: 1, Start: 0, End: 2, Speaker: "SPEAKER_00", Text: "hello"},
		{ID: 2, Start: 2.3, End: 4, Speaker: "SPEAKER_00", Text: "there"},
		{ID: 3, Start: 4.2, End: 6, Speaker: "SPEAKER_01", Text: "hi"},
	}

	merged := segments.Merge(segs, 500*time.Millisecond)
	if len(merged) != 2 {
		t.Fatalf("expected 2 segments after merge, got %d", len(merged))
	}
	first := merged[0]
	if first.ID != 1 {
		t.Fatalf("merged segment must keep the first ID, got %d", first.ID)
	}
	if first.Start != 0 || first.End != 4 {
		t.Fatalf("merged span wrong: [%v, %v]", first.Start, first.End)
	}
	if first.Text != "hello there" {
		t.Fatalf("merged text wrong: %q", first.Text)
	}
	if merged[1].Speaker != "SPEAKER_01" {
		t.Fatalf("speaker change must break the merge, got %q", merged[1].Speaker)
	}
}

func TestMergeRespectsSilenceThreshold(t *testing.T) {
	segs := []session.Segment{
		{ID: 1, Start: 0, End: 2, Speaker: "SPEAKER_00", Text: "a"},
		{ID: 2, Start: 3, End: 4, Speaker: "SPEAKER_00", Text: "b"},
	}

	merged := segments.Merge(segs, 500*time.Millisecond)
	if len(merged) != 2 {
		t.Fatalf("gap above threshold must not merge, got %d segments", len(merged))
	}
}

func TestMergeHandlesShortInputs(t *testing.T) {
	if got := segments.Merge(nil, time.Second); len(got) != 0 {
		t.Fatalf("merging nil should stay empty, got %d", len(got))
	}
	one := []session.Segment{{ID: 1, Start: 0, End: 1, Speaker: "SPEAKER_00"}}
	if got := segments.Merge(one, time.Second); len(got) != 1 {
		t.Fatalf("single segment should pass through, got %d", len(got))
	}
}

package validation_test

import (
	"math"
	"testing"

	"dubflow/internal/validation"
)

func TestWordEditRate(t *testing.T) {
	cases := []struct {
		name      string
		reference string
		candidate string
		want      float64
	}{
		{"identical", "the quick brown fox", "the quick brown fox", 0},
		{"fully rewritten", "one two", "three four", 1},
		{"single substitution", "the quick brown fox", "the quick red fox", 0.25},
		{"both empty", "", "", 0},
		{"empty reference", "", "something", 1},
		{"empty candidate", "a b c d", "", 1},
	}
	for _, tc := range cases {
		got := validation.WordEditRate(tc.reference, tc.candidate)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: WordEditRate = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSpeakerChangeAccuracy(t *testing.T) {
	perfect := validation.SpeakerChangeAccuracy(
		[]string{"A", "A", "B", "B"},
		[]string{"X", "X", "Y", "Y"},
	)
	if perfect != 1 {
		t.Fatalf("matching change points should score 1, got %v", perfect)
	}

	none := validation.SpeakerChangeAccuracy(
		[]string{"A", "B", "A", "B"},
		[]string{"X", "X", "X", "X"},
	)
	if none != 0 {
		t.Fatalf("fully disagreeing change points should score 0, got %v", none)
	}

	half := validation.SpeakerChangeAccuracy(
		[]string{"A", "B", "B"},
		[]string{"X", "Y", "Z"},
	)
	if math.Abs(half-0.5) > 1e-9 {
		t.Fatalf("expected 0.5 agreement, got %v", half)
	}
}

func TestSpeakerChangeAccuracyShortSequences(t *testing.T) {
	if got := validation.SpeakerChangeAccuracy([]string{"A"}, []string{"B"}); got != 1 {
		t.Fatalf("equal-length trivial sequences should score 1, got %v", got)
	}
	if got := validation.SpeakerChangeAccuracy([]string{"A"}, nil); got != 0 {
		t.Fatalf("mismatched trivial sequences should score 0, got %v", got)
	}
}

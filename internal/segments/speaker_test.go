package segments_test

import (
	"testing"

	"dubflow/internal/segments"
)

func TestCanonicalSpeaker(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SPEAKER_00", "SPEAKER_00"},
		{"SPEAKER_12", "SPEAKER_12"},
		{"1", "SPEAKER_01"},
		{"speaker 1", "SPEAKER_01"},
		{"Speaker_3", "SPEAKER_03"},
		{"SPEAKER 7", "SPEAKER_07"},
		{"  2  ", "SPEAKER_02"},
		{"Priya", "Priya"},
		{"Narrator 2nd take", "Narrator 2nd take"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := segments.CanonicalSpeaker(tc.in); got != tc.want {
			t.Errorf("CanonicalSpeaker(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalSpeakerIsIdempotent(t *testing.T) {
	inputs := []string{"speaker 4", "SPEAKER_00", "Priya", "9"}
	for _, in := range inputs {
		once := segments.CanonicalSpeaker(in)
		twice := segments.CanonicalSpeaker(once)
		if once != twice {
			t.Errorf("CanonicalSpeaker not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

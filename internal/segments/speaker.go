package segments

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Canonical speaker tags follow the diarizer's SPEAKER_NN convention.
var canonicalSpeakerPattern = regexp.MustCompile(`^SPEAKER_\d{2,}$`)

var trailingIndexPattern = regexp.MustCompile(`(\d+)\s*$`)

// CanonicalSpeaker normalizes shorthand speaker labels to the session's
// canonical SPEAKER_NN form. A bare index ("1"), a prefixed index
// ("speaker 1", "Speaker_1"), and an already-canonical tag all map to the
// same result, so re-canonicalizing is a no-op. Labels carrying no index
// (free-form names) are returned trimmed and unchanged.
func CanonicalSpeaker(label string) string {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return trimmed
	}
	if canonicalSpeakerPattern.MatchString(trimmed) {
		return trimmed
	}
	match := trailingIndexPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return trimmed
	}
	prefix := strings.TrimSpace(strings.TrimSuffix(trimmed, match[0]))
	prefix = strings.Trim(prefix, "_- ")
	if prefix != "" && !strings.EqualFold(prefix, "speaker") {
		return trimmed
	}
	index, err := strconv.Atoi(match[1])
	if err != nil {
		return trimmed
	}
	return fmt.Sprintf("SPEAKER_%02d", index)
}

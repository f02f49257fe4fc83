package validation

import "strings"

// WordEditRate returns the word-level Levenshtein distance between reference
// and candidate, normalized by the longer of the two word counts. 0 means
// identical, 1 means fully rewritten. An empty reference scores 0 against an empty
// candidate and 1 against anything else.
func WordEditRate(reference, candidate string) float64 {
	ref := strings.Fields(reference)
	cand := strings.Fields(candidate)
	if len(ref) == 0 {
		if len(cand) == 0 {
			return 0
		}
		return 1
	}

	prev := make([]int, len(cand)+1)
	curr := make([]int, len(cand)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ref); i++ {
		curr[0] = i
		for j := 1; j <= len(cand); j++ {
			cost := 1
			if ref[i-1] == cand[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	rate := float64(prev[len(cand)]) / float64(maxInt(len(ref), len(cand)))
	if rate > 1 {
		rate = 1
	}
	return rate
}

// SpeakerChangeAccuracy compares the positions where the speaker changes in
// two label sequences and returns the fraction of change points that agree.
// Sequences shorter than two labels trivially score 1 when equal in length.
func SpeakerChangeAccuracy(reference, candidate []string) float64 {
	if len(reference) < 2 || len(candidate) < 2 {
		if len(reference) == len(candidate) {
			return 1
		}
		return 0
	}
	n := minInt(len(reference), len(candidate))
	var agree, total int
	for i := 1; i < n; i++ {
		refChange := reference[i] != reference[i-1]
		candChange := candidate[i] != candidate[i-1]
		total++
		if refChange == candChange {
			agree++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(agree) / float64(total)
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package parser

import "strings"

// titleWords lowercases and splits a title into comparable word tokens,
// dropping punctuation-only tokens.
func titleWords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// TitleSimilarity is the Jaccard similarity of the word sets of two
// titles, in [0,1].
func TitleSimilarity(a, b string) float64 {
	wa, wb := titleWords(a), titleWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(wa))
	for _, w := range wa {
		set[w] = true
	}
	both := 0
	seen := make(map[string]bool, len(wb))
	for _, w := range wb {
		if seen[w] {
			continue
		}
		seen[w] = true
		if set[w] {
			both++
		}
	}
	union := len(set) + len(seen) - both
	if union == 0 {
		return 0
	}
	return float64(both) / float64(union)
}

// OverlapScore weights how much of the query a candidate title covers
// (recall) against how much of the candidate is query words
// (precision). Recall dominates: extra subtitle words on the candidate
// cost little, missing query words cost a lot.
func OverlapScore(query, candidate string) float64 {
	qw, cw := titleWords(query), titleWords(candidate)
	if len(qw) == 0 || len(cw) == 0 {
		return 0
	}
	cset := make(map[string]bool, len(cw))
	for _, w := range cw {
		cset[w] = true
	}
	qset := make(map[string]bool, len(qw))
	hit := 0
	for _, w := range qw {
		if qset[w] {
			continue
		}
		qset[w] = true
		if cset[w] {
			hit++
		}
	}
	recall := float64(hit) / float64(len(qset))
	precision := float64(hit) / float64(len(cset))
	return 0.75*recall + 0.25*precision
}

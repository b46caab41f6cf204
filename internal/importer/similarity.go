package importer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

var markupTagRe = regexp.MustCompile(`<[^>]*>`)

// cleanContent normalizes text for duplicate comparison: markup stripped,
// whitespace collapsed, trimmed, lower-cased.
func cleanContent(s string) string {
	s = markupTagRe.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}

// answerSignature builds the exact-duplicate key for an answer set: answers
// ordered by their order index, cleaned, joined. Permuting the slice while
// keeping order indexes fixed yields the same signature.
func answerSignature(answers []AnswerPreview) string {
	sorted := append([]AnswerPreview(nil), answers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OrderIndex < sorted[j].OrderIndex })
	parts := make([]string, 0, len(sorted))
	for _, a := range sorted {
		parts = append(parts, cleanContent(a.Content))
	}
	return strings.Join(parts, "||")
}

func answerTextsSignature(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, cleanContent(t))
	}
	return strings.Join(parts, "||")
}

// similarity is the normalized edit-distance score in [0,1] between two
// already-cleaned strings: 1 - levenshtein(a,b)/max(len(a),len(b)).
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(d)/float64(maxLen)
}

// lengthsComparable is the cheap pre-filter: strings whose lengths differ
// by more than maxRatio of the longer one are never edit-distance compared.
func lengthsComparable(a, b string, maxRatio float64) bool {
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return true
	}
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	return float64(diff)/float64(maxLen) <= maxRatio
}

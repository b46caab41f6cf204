package importer

import (
	"math"
	"testing"
)

func TestCleanContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "What time is it?", want: "what time is it?"},
		{name: "markup stripped", in: "<p>What <b>time</b> is it?</p>", want: "what time is it?"},
		{name: "whitespace collapsed", in: "  What \t time\n is  it? ", want: "what time is it?"},
		{name: "empty", in: "", want: ""},
		{name: "markup only", in: "<br/><img src='x'>", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleanContent(tc.in); got != tc.want {
				t.Fatalf("cleanContent(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestAnswerSignatureOrderIndexInvariant(t *testing.T) {
	base := []AnswerPreview{
		{Content: "in the morning", OrderIndex: 1},
		{Content: "At Noon", OrderIndex: 2},
		{Content: "at night", OrderIndex: 3},
	}
	permuted := []AnswerPreview{
		{Content: "at night", OrderIndex: 3},
		{Content: "in the morning", OrderIndex: 1},
		{Content: "At Noon", OrderIndex: 2},
	}

	want := "in the morning||at noon||at night"
	if got := answerSignature(base); got != want {
		t.Fatalf("answerSignature(base) = %q, want %q", got, want)
	}
	if got := answerSignature(permuted); got != want {
		t.Fatalf("answerSignature(permuted) = %q, want %q: slice order must not matter", got, want)
	}
}

func TestAnswerSignatureMatchesTextsSignature(t *testing.T) {
	answers := []AnswerPreview{
		{Content: "A desk", OrderIndex: 1},
		{Content: "A <i>chair</i>", OrderIndex: 2},
	}
	stored := []string{"a desk", "a chair"}
	if a, b := answerSignature(answers), answerTextsSignature(stored); a != b {
		t.Fatalf("signatures disagree: parsed %q vs stored %q", a, b)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "the man is reading", b: "the man is reading", want: 1.0},
		{name: "both empty", a: "", b: "", want: 1.0},
		{name: "one empty", a: "abcd", b: "", want: 0.0},
		{name: "one edit in ten runes", a: "abcdefghij", b: "abcdefghix", want: 0.9},
		{name: "disjoint", a: "aaaa", b: "bbbb", want: 0.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := similarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("similarity(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			if sym := similarity(tc.b, tc.a); math.Abs(sym-got) > 1e-9 {
				t.Fatalf("similarity is not symmetric: %v vs %v", got, sym)
			}
		})
	}
}

func TestLengthsComparable(t *testing.T) {
	tests := []struct {
		name  string
		a, b  string
		ratio float64
		want  bool
	}{
		{name: "equal lengths", a: "abcd", b: "wxyz", ratio: 0.25, want: true},
		{name: "just inside ratio", a: "abcdefgh", b: "abcdef", ratio: 0.25, want: true},
		{name: "outside ratio", a: "abcdefghij", b: "abc", ratio: 0.25, want: false},
		{name: "both empty", a: "", b: "", ratio: 0.25, want: true},
		{name: "one empty", a: "abcd", b: "", ratio: 0.25, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := lengthsComparable(tc.a, tc.b, tc.ratio); got != tc.want {
				t.Fatalf("lengthsComparable(%q, %q, %v) = %v, want %v", tc.a, tc.b, tc.ratio, got, tc.want)
			}
		})
	}
}

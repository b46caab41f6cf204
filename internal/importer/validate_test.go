package importer

import (
	"fmt"
	"strings"
	"testing"

	"toeicbank/internal/category"
)

func testValidator(t *testing.T, mediaNames []string, existing []ExistingQuestionLite, groups []ExistingGroupLite, answerSets []ExistingAnswerSetLite) *validator {
	t.Helper()
	idx := &MediaIndex{paths: make(map[string]string)}
	for _, name := range mediaNames {
		idx.register(name, "/tmp/"+name)
	}
	return newValidator(Config{}.withDefaults(), idx, existing, groups, answerSets)
}

func fourAnswers(correct int) []AnswerPreview {
	answers := make([]AnswerPreview, 4)
	for i := range answers {
		answers[i] = AnswerPreview{Content: string(rune('a' + i)), OrderIndex: i + 1}
	}
	if correct >= 1 && correct <= 4 {
		answers[correct-1].IsCorrect = true
	}
	return answers
}

func hasCode(errs []ImportError, code string) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}

func TestValidateSingleAnswerRules(t *testing.T) {
	spec := layoutSpecs[category.LayoutSingleText4]

	tests := []struct {
		name      string
		answers   []AnswerPreview
		wantCodes []string
	}{
		{name: "valid", answers: fourAnswers(2), wantCodes: nil},
		{name: "no correct answer", answers: fourAnswers(0), wantCodes: []string{CodeCorrectCount}},
		{
			name: "two correct answers",
			answers: func() []AnswerPreview {
				a := fourAnswers(1)
				a[2].IsCorrect = true
				return a
			}(),
			wantCodes: []string{CodeCorrectCount},
		},
		{
			name:      "too few answers",
			answers:   []AnswerPreview{{Content: "a", OrderIndex: 1, IsCorrect: true}, {Content: "b", OrderIndex: 2}},
			wantCodes: []string{CodeAnswerCount},
		},
		{
			name: "blank answer text",
			answers: func() []AnswerPreview {
				a := fourAnswers(1)
				a[2].Content = "  "
				return a
			}(),
			wantCodes: []string{CodeEmptyAnswer},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := testValidator(t, nil, nil, nil, nil)
			q := &SingleQuestion{CategoryID: 5, Content: "unique " + tc.name, Answers: tc.answers, Row: 2}
			v.validateSingle(spec, q)

			if tc.wantCodes == nil {
				if q.HasError() {
					t.Fatalf("unexpected errors: %+v", q.Errors)
				}
				return
			}
			for _, code := range tc.wantCodes {
				if !hasCode(q.Errors, code) {
					t.Errorf("missing %s in %+v", code, q.Errors)
				}
			}
		})
	}
}

func TestValidateSingleRequiredMedia(t *testing.T) {
	spec := layoutSpecs[category.LayoutSingleAudioImage4]

	t.Run("resolvable refs pass", func(t *testing.T) {
		v := testValidator(t, []string{"q1.mp3", "q1.jpg"}, nil, nil, nil)
		q := &SingleQuestion{CategoryID: 1, AudioRef: "q1.mp3", ImageRef: "q1.jpg", Answers: fourAnswers(1), Row: 2}
		v.validateSingle(spec, q)
		if q.HasError() {
			t.Fatalf("unexpected errors: %+v", q.Errors)
		}
	})

	t.Run("inline URL skips archive lookup", func(t *testing.T) {
		v := testValidator(t, nil, nil, nil, nil)
		q := &SingleQuestion{
			CategoryID: 1,
			AudioRef:   "https://cdn.example.com/q1.mp3",
			ImageRef:   "HTTP://cdn.example.com/q1.jpg",
			Answers:    fourAnswers(1),
			Row:        2,
		}
		v.validateSingle(spec, q)
		if q.HasError() {
			t.Fatalf("unexpected errors: %+v", q.Errors)
		}
	})

	t.Run("missing refs reported and collected", func(t *testing.T) {
		v := testValidator(t, nil, nil, nil, nil)
		q := &SingleQuestion{CategoryID: 1, AudioRef: "lost.mp3", ImageRef: "", Answers: fourAnswers(1), Row: 4}
		v.validateSingle(spec, q)

		if !hasCode(q.Errors, CodeAudioMissing) {
			t.Errorf("missing %s in %+v", CodeAudioMissing, q.Errors)
		}
		if !hasCode(q.Errors, CodeImageMissing) {
			t.Errorf("missing %s for empty image ref in %+v", CodeImageMissing, q.Errors)
		}
		if _, ok := v.missing["lost.mp3"]; !ok {
			t.Errorf("lost.mp3 not collected in missing set %v", v.missing)
		}
		// An empty reference is a per-item error, not a missing file.
		if len(v.missing) != 1 {
			t.Errorf("missing set = %v, want only lost.mp3", v.missing)
		}
	})
}

func TestValidateSingleDuplicatesInFile(t *testing.T) {
	spec := layoutSpecs[category.LayoutSingleText4]
	v := testValidator(t, nil, nil, nil, nil)

	first := &SingleQuestion{CategoryID: 5, Content: "What does the memo say?", Answers: fourAnswers(1), Row: 2}
	second := &SingleQuestion{CategoryID: 5, Content: "  what does the <b>memo</b> say?  ", Answers: fourAnswers(2), Row: 3}

	v.validateSingle(spec, first)
	v.validateSingle(spec, second)

	if first.IsDuplicate || first.HasError() {
		t.Fatalf("first occurrence flagged: %+v", first.Errors)
	}
	if !second.IsDuplicate || !hasCode(second.Errors, CodeDuplicateInFile) {
		t.Fatalf("second occurrence not flagged: %+v", second.Errors)
	}
}

func TestValidateSingleDuplicateAnswerSets(t *testing.T) {
	spec := layoutSpecs[category.LayoutSingleText4]
	stored := []ExistingAnswerSetLite{{QuestionID: 42, Answers: []string{"spring", "summer", "fall", "winter"}}}
	v := testValidator(t, nil, nil, nil, stored)

	seasons := []AnswerPreview{
		{Content: "Spring", OrderIndex: 1, IsCorrect: true},
		{Content: "Summer", OrderIndex: 2},
		{Content: "Fall", OrderIndex: 3},
		{Content: "Winter", OrderIndex: 4},
	}
	q := &SingleQuestion{CategoryID: 5, Content: "Which season follows winter?", Answers: seasons, Row: 2}
	v.validateSingle(spec, q)

	if !q.IsDuplicate || !hasCode(q.Errors, CodeDuplicateAnswersInBank) {
		t.Fatalf("stored answer-set match not flagged: %+v", q.Errors)
	}
	for _, e := range q.Errors {
		if e.Code == CodeDuplicateAnswersInBank && !strings.Contains(e.Message, "#42") {
			t.Errorf("message %q does not name the stored question", e.Message)
		}
	}

	again := &SingleQuestion{CategoryID: 5, Content: "A different stem entirely.", Answers: seasons, Row: 3}
	v.validateSingle(spec, again)
	if !hasCode(again.Errors, CodeDuplicateAnswersInFile) {
		t.Fatalf("in-file answer-set repeat not flagged: %+v", again.Errors)
	}
}

func TestValidateSingleSimilarToStored(t *testing.T) {
	spec := layoutSpecs[category.LayoutSingleText4]
	stored := []ExistingQuestionLite{
		{ID: 7, CategoryID: 5, Content: "The shipment will arrive on Monday morning."},
		{ID: 8, CategoryID: 9, Content: "The shipment will arrive on Monday morning."},
	}
	v := testValidator(t, nil, stored, nil, nil)

	t.Run("near match in same category", func(t *testing.T) {
		q := &SingleQuestion{
			CategoryID: 5,
			Content:    "The shipment will arrive on Tuesday morning.",
			Answers:    fourAnswers(1),
			Row:        2,
		}
		v.validateSingle(spec, q)
		if !q.IsDuplicate || !hasCode(q.Errors, CodeDuplicateInBank) {
			t.Fatalf("near-duplicate not flagged: %+v", q.Errors)
		}
		for _, e := range q.Errors {
			if e.Code == CodeDuplicateInBank && !strings.Contains(e.Message, "#7") {
				t.Errorf("message %q does not name stored question 7", e.Message)
			}
		}
	})

	t.Run("other category is not compared", func(t *testing.T) {
		q := &SingleQuestion{
			CategoryID: 11,
			Content:    "The shipment will arrive on Monday morning.",
			Answers:    fourAnswers(1),
			Row:        2,
		}
		v.validateSingle(spec, q)
		if hasCode(q.Errors, CodeDuplicateInBank) {
			t.Fatalf("cross-category content flagged: %+v", q.Errors)
		}
	})

	t.Run("unrelated content passes", func(t *testing.T) {
		q := &SingleQuestion{
			CategoryID: 5,
			Content:    "Please silence your phone during the presentation.",
			Answers:    fourAnswers(1),
			Row:        2,
		}
		v.validateSingle(spec, q)
		if hasCode(q.Errors, CodeDuplicateInBank) {
			t.Fatalf("unrelated content flagged: %+v", q.Errors)
		}
	})
}

func TestValidateGroup(t *testing.T) {
	spec := layoutSpecs[category.LayoutGroupedAudio]

	makeSubs := func(numbers ...int) []SubQuestion {
		subs := make([]SubQuestion, 0, len(numbers))
		for i, n := range numbers {
			answers := fourAnswers(1)
			for j := range answers {
				// Distinct option texts per sub so the answer-set duplicate
				// check stays out of these assertions.
				answers[j].Content = fmt.Sprintf("option %d-%d-%d", n, i, j)
			}
			subs = append(subs, SubQuestion{
				Number:  n,
				Content: "sub question",
				Answers: answers,
				Row:     2 + i,
			})
		}
		return subs
	}

	t.Run("valid group", func(t *testing.T) {
		v := testValidator(t, []string{"conv1.mp3"}, nil, nil, nil)
		g := &QuestionGroup{CategoryID: 3, AudioRef: "conv1.mp3", Subs: makeSubs(1, 2, 3), StartRow: 2}
		v.validateGroup(spec, g)
		if g.HasError() {
			t.Fatalf("unexpected errors: %+v", g.Errors)
		}
	})

	t.Run("wrong sub count, exact bound", func(t *testing.T) {
		v := testValidator(t, []string{"conv1.mp3"}, nil, nil, nil)
		g := &QuestionGroup{CategoryID: 3, AudioRef: "conv1.mp3", Subs: makeSubs(1, 2), StartRow: 2}
		v.validateGroup(spec, g)
		if !hasCode(g.Errors, CodeSubCount) {
			t.Fatalf("missing %s: %+v", CodeSubCount, g.Errors)
		}
		for _, e := range g.Errors {
			if e.Code == CodeSubCount && !strings.Contains(e.Message, "exactly 3") {
				t.Errorf("exact-bound message = %q", e.Message)
			}
		}
	})

	t.Run("wrong sub count, range bound", func(t *testing.T) {
		readingSpec := layoutSpecs[category.LayoutGroupedReading]
		v := testValidator(t, nil, nil, nil, nil)
		g := &QuestionGroup{CategoryID: 7, Content: "passage", Subs: makeSubs(1), StartRow: 2}
		v.validateGroup(readingSpec, g)
		found := false
		for _, e := range g.Errors {
			if e.Code == CodeSubCount {
				found = true
				if !strings.Contains(e.Message, "between 2 and 5") {
					t.Errorf("range-bound message = %q", e.Message)
				}
			}
		}
		if !found {
			t.Fatalf("missing %s: %+v", CodeSubCount, g.Errors)
		}
	})

	t.Run("non-sequential numbering", func(t *testing.T) {
		v := testValidator(t, []string{"conv1.mp3"}, nil, nil, nil)
		g := &QuestionGroup{CategoryID: 3, AudioRef: "conv1.mp3", Subs: makeSubs(1, 3, 2), StartRow: 2}
		v.validateGroup(spec, g)
		if !hasCode(g.Subs[1].Errors, CodeSubNumbering) {
			t.Errorf("sub 2 with declared number 3 not flagged: %+v", g.Subs[1].Errors)
		}
		if !hasCode(g.Subs[2].Errors, CodeSubNumbering) {
			t.Errorf("sub 3 with declared number 2 not flagged: %+v", g.Subs[2].Errors)
		}
		if hasCode(g.Subs[0].Errors, CodeSubNumbering) {
			t.Errorf("sub 1 wrongly flagged: %+v", g.Subs[0].Errors)
		}
		if !g.HasError() {
			t.Error("group HasError must surface sub-question errors")
		}
	})

	t.Run("missing audio", func(t *testing.T) {
		v := testValidator(t, nil, nil, nil, nil)
		g := &QuestionGroup{CategoryID: 3, AudioRef: "conv9.mp3", Subs: makeSubs(1, 2, 3), StartRow: 2}
		v.validateGroup(spec, g)
		if !hasCode(g.Errors, CodeAudioMissing) {
			t.Fatalf("missing %s: %+v", CodeAudioMissing, g.Errors)
		}
	})

	t.Run("repeated passage flagged", func(t *testing.T) {
		v := testValidator(t, nil, nil, nil, nil)
		readingSpec := layoutSpecs[category.LayoutGroupedReading]
		passage := "Dear customer, your subscription has been renewed."
		g1 := &QuestionGroup{CategoryID: 7, Content: passage, Subs: makeSubs(1, 2), StartRow: 2}
		g2 := &QuestionGroup{CategoryID: 7, Content: passage, Subs: makeSubs(1, 2), StartRow: 8}
		v.validateGroup(readingSpec, g1)
		v.validateGroup(readingSpec, g2)

		if hasCode(g1.Errors, CodeDuplicateInFile) {
			t.Errorf("first group flagged: %+v", g1.Errors)
		}
		if !hasCode(g2.Errors, CodeDuplicateInFile) {
			t.Errorf("second group not flagged: %+v", g2.Errors)
		}
	})
}

package importer

import (
	"strings"
)

// Minimal projections of persisted content, loaded once per preview/import
// and only compared against, never mutated.
type ExistingQuestionLite struct {
	ID         int64
	CategoryID int64
	Content    string
}

type ExistingGroupLite struct {
	ID         int64
	CategoryID int64
	Content    string
}

type ExistingAnswerSetLite struct {
	QuestionID int64
	Answers    []string // ordered by order index
}

type existingContent struct {
	id      int64
	cleaned string
}

// validator runs after parsing and touches only Errors/IsDuplicate fields.
// In-batch duplicate detection is order-dependent: the first occurrence
// stays clean, later ones are flagged.
type validator struct {
	cfg   Config
	index *MediaIndex

	missing map[string]struct{}

	seenQuestionContent map[string]struct{}
	seenGroupContent    map[string]struct{}
	seenAnswerSets      map[string]struct{}

	existingQuestions map[int64][]existingContent
	existingGroups    map[int64][]existingContent
	existingSigs      map[string]int64 // signature -> question id
}

func newValidator(cfg Config, index *MediaIndex, questions []ExistingQuestionLite, groups []ExistingGroupLite, answerSets []ExistingAnswerSetLite) *validator {
	v := &validator{
		cfg:                 cfg,
		index:               index,
		missing:             make(map[string]struct{}),
		seenQuestionContent: make(map[string]struct{}),
		seenGroupContent:    make(map[string]struct{}),
		seenAnswerSets:      make(map[string]struct{}),
		existingQuestions:   make(map[int64][]existingContent),
		existingGroups:      make(map[int64][]existingContent),
		existingSigs:        make(map[string]int64),
	}
	for _, q := range questions {
		v.existingQuestions[q.CategoryID] = append(v.existingQuestions[q.CategoryID], existingContent{id: q.ID, cleaned: cleanContent(q.Content)})
	}
	for _, g := range groups {
		v.existingGroups[g.CategoryID] = append(v.existingGroups[g.CategoryID], existingContent{id: g.ID, cleaned: cleanContent(g.Content)})
	}
	for _, s := range answerSets {
		sig := answerTextsSignature(s.Answers)
		if sig != "" {
			v.existingSigs[sig] = s.QuestionID
		}
	}
	return v
}

func (v *validator) validate(res *ParseResult) {
	for i := range res.Sheets {
		sheet := &res.Sheets[i]
		if sheet.FatalError != nil {
			continue
		}
		spec, ok := layoutSpecs[sheet.Layout]
		if !ok {
			continue
		}
		for _, item := range sheet.Items {
			switch it := item.(type) {
			case *SingleQuestion:
				v.validateSingle(spec, it)
			case *QuestionGroup:
				v.validateGroup(spec, it)
			}
		}
	}

	for name := range v.missing {
		res.MissingMedia = append(res.MissingMedia, name)
	}
	res.MissingMedia = res.sortedMissingMedia()
}

func (v *validator) validateSingle(spec layoutSpec, q *SingleQuestion) {
	q.Errors = append(q.Errors, v.answerErrors(spec, q.Answers, q.Row)...)

	if spec.requireAudio {
		q.Errors = append(q.Errors, v.mediaErrors(CodeAudioMissing, q.AudioRef, q.Row, "audio")...)
	}
	if spec.requireImage {
		q.Errors = append(q.Errors, v.mediaErrors(CodeImageMissing, q.ImageRef, q.Row, "image")...)
	}

	cleaned := cleanContent(q.Content)
	if cleaned != "" {
		if _, seen := v.seenQuestionContent[cleaned]; seen {
			q.IsDuplicate = true
			q.Errors = append(q.Errors, itemError(CodeDuplicateInFile, q.Row, "question text repeats an earlier row in this file"))
		} else {
			v.seenQuestionContent[cleaned] = struct{}{}
		}

		if id, score, found := v.findSimilarExisting(v.existingQuestions[q.CategoryID], cleaned); found {
			q.IsDuplicate = true
			q.Errors = append(q.Errors, itemError(CodeDuplicateInBank, q.Row,
				"question text is %.0f%% similar to stored question #%d", score*100, id))
		}
	}

	v.checkAnswerSet(&q.Errors, &q.IsDuplicate, q.Answers, q.Row)
}

func (v *validator) validateGroup(spec layoutSpec, g *QuestionGroup) {
	if spec.requireAudio {
		g.Errors = append(g.Errors, v.mediaErrors(CodeAudioMissing, g.AudioRef, g.StartRow, "audio")...)
	}

	if n := len(g.Subs); n < spec.subMin || n > spec.subMax {
		if spec.subMin == spec.subMax {
			g.Errors = append(g.Errors, itemError(CodeSubCount, g.StartRow,
				"group must contain exactly %d sub-questions, found %d", spec.subMin, n))
		} else {
			g.Errors = append(g.Errors, itemError(CodeSubCount, g.StartRow,
				"group must contain between %d and %d sub-questions, found %d", spec.subMin, spec.subMax, n))
		}
	}

	cleaned := cleanContent(g.Content)
	if cleaned != "" {
		if _, seen := v.seenGroupContent[cleaned]; seen {
			g.Errors = append(g.Errors, itemError(CodeDuplicateInFile, g.StartRow, "group passage repeats an earlier group in this file"))
		} else {
			v.seenGroupContent[cleaned] = struct{}{}
		}

		if id, score, found := v.findSimilarExisting(v.existingGroups[g.CategoryID], cleaned); found {
			g.Errors = append(g.Errors, itemError(CodeDuplicateInBank, g.StartRow,
				"group passage is %.0f%% similar to stored group #%d", score*100, id))
		}
	}

	for i := range g.Subs {
		sub := &g.Subs[i]
		if sub.Number != i+1 {
			sub.Errors = append(sub.Errors, itemError(CodeSubNumbering, sub.Row,
				"sub-question %d declares number %d", i+1, sub.Number))
		}
		sub.Errors = append(sub.Errors, v.answerErrors(spec, sub.Answers, sub.Row)...)
		v.checkAnswerSet(&sub.Errors, &sub.IsDuplicate, sub.Answers, sub.Row)
	}
}

func (v *validator) answerErrors(spec layoutSpec, answers []AnswerPreview, row int) []ImportError {
	var errs []ImportError
	if len(answers) != spec.answerCount {
		errs = append(errs, itemError(CodeAnswerCount, row,
			"expected %d answers, found %d", spec.answerCount, len(answers)))
	}
	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
		if strings.TrimSpace(a.Content) == "" {
			errs = append(errs, itemError(CodeEmptyAnswer, row, "answer %d has no text", a.OrderIndex))
		}
	}
	if correct != 1 {
		errs = append(errs, itemError(CodeCorrectCount, row,
			"expected exactly one correct answer, found %d", correct))
	}
	return errs
}

// mediaErrors checks a required media reference: it must be present, and
// unless it is an inline URL it must resolve against the archive's media
// index. Unresolvable names also land in the batch-wide missing set.
func (v *validator) mediaErrors(code, ref string, row int, label string) []ImportError {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return []ImportError{itemError(code, row, "required %s reference is missing", label)}
	}
	if isInlineURL(ref) {
		return nil
	}
	if _, ok := v.index.Resolve(ref); !ok {
		v.missing[normalizeMediaKey(ref)] = struct{}{}
		return []ImportError{itemError(code, row, "%s file %q not found in archive", label, ref)}
	}
	return nil
}

func (v *validator) checkAnswerSet(errs *[]ImportError, dup *bool, answers []AnswerPreview, row int) {
	sig := answerSignature(answers)
	if sig == "" {
		return
	}
	if _, seen := v.seenAnswerSets[sig]; seen {
		*dup = true
		*errs = append(*errs, itemError(CodeDuplicateAnswersInFile, row, "answer set repeats an earlier question in this file"))
	} else {
		v.seenAnswerSets[sig] = struct{}{}
	}
	if id, ok := v.existingSigs[sig]; ok {
		*dup = true
		*errs = append(*errs, itemError(CodeDuplicateAnswersInBank, row, "answer set matches stored question #%d", id))
	}
}

// findSimilarExisting compares cleaned content against the recent window of
// stored rows, short-circuiting pairs whose lengths differ too much, and
// reports the first match above the configured threshold.
func (v *validator) findSimilarExisting(window []existingContent, cleaned string) (int64, float64, bool) {
	for _, ex := range window {
		if ex.cleaned == "" {
			continue
		}
		if !lengthsComparable(cleaned, ex.cleaned, v.cfg.LengthRatio) {
			continue
		}
		if score := similarity(cleaned, ex.cleaned); score >= v.cfg.SimilarityThreshold {
			return ex.id, score, true
		}
	}
	return 0, 0, false
}

func isInlineURL(ref string) bool {
	low := strings.ToLower(ref)
	return strings.HasPrefix(low, "http://") || strings.HasPrefix(low, "https://")
}

package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"toeicbank/internal/category"
)

// parseWorkbook parses every worksheet in document order. Sheets that match
// no category, or whose header row does not match the category's layout,
// carry a fatal sheet error and contribute no items.
func parseWorkbook(f *excelize.File, categories []category.Category) ([]SheetPreview, error) {
	sheets := f.GetSheetList()
	out := make([]SheetPreview, 0, len(sheets))
	for _, sheetName := range sheets {
		sp, err := parseSheet(f, sheetName, categories)
		if err != nil {
			return nil, err
		}
		out = append(out, *sp)
	}
	return out, nil
}

func parseSheet(f *excelize.File, sheetName string, categories []category.Category) (*SheetPreview, error) {
	sp := &SheetPreview{SheetName: sheetName, Items: []PreviewItem{}}

	cat := matchCategory(sheetName, categories)
	if cat == nil {
		e := fatalError(CodeUnknownSheet, "sheet %q matches no category", sheetName)
		sp.FatalError = &e
		return sp, nil
	}
	sp.CategoryID = cat.ID
	sp.CategoryName = cat.Name
	sp.Layout = cat.LayoutKind

	spec, ok := layoutSpecs[cat.LayoutKind]
	if !ok {
		e := fatalError(CodeUnknownSheet, "category %q has no parsing layout", cat.Name)
		sp.FatalError = &e
		return sp, nil
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}
	if len(rows) == 0 {
		e := fatalError(CodeHeaderMismatch, "sheet %q is empty", sheetName)
		sp.FatalError = &e
		return sp, nil
	}
	if !headerMatches(spec.headers, rows[0]) {
		e := fatalError(CodeHeaderMismatch, "sheet %q header row does not match the %s layout", sheetName, cat.LayoutKind)
		sp.FatalError = &e
		return sp, nil
	}

	if cat.LayoutKind.Grouped() {
		sc := &groupScanner{rows: rows, pos: 1, spec: spec, categoryID: cat.ID}
		for {
			g, ok := sc.next()
			if !ok {
				break
			}
			sp.Items = append(sp.Items, g)
		}
	} else {
		for i := 1; i < len(rows); i++ {
			if rowBlank(rows[i]) {
				continue
			}
			sp.Items = append(sp.Items, parseSingleRow(rows[i], spec, cat.ID, i+1))
		}
	}
	return sp, nil
}

func parseSingleRow(row []string, spec layoutSpec, categoryID int64, sheetRow int) *SingleQuestion {
	q := &SingleQuestion{
		CategoryID:  categoryID,
		Content:     cell(row, spec.cols.question),
		AudioRef:    cell(row, spec.cols.audio),
		ImageRef:    cell(row, spec.cols.image),
		Explanation: cell(row, spec.cols.explanation),
		Tags:        cell(row, spec.cols.tags),
		Row:         sheetRow,
	}
	q.Answers = parseAnswers(row, spec)
	return q
}

// groupScanner walks grouped-layout rows with an explicit cursor. Each call
// to next consumes exactly one group: its start row plus every following row
// that belongs to it.
type groupScanner struct {
	rows       [][]string
	pos        int
	spec       layoutSpec
	categoryID int64
}

func (sc *groupScanner) next() (*QuestionGroup, bool) {
	for sc.pos < len(sc.rows) && rowBlank(sc.rows[sc.pos]) {
		sc.pos++
	}
	if sc.pos >= len(sc.rows) {
		return nil, false
	}

	start := sc.pos
	row := sc.rows[start]
	g := &QuestionGroup{
		CategoryID: sc.categoryID,
		Title:      cell(row, sc.spec.cols.title),
		Content:    cell(row, sc.spec.cols.content),
		AudioRef:   cell(row, sc.spec.cols.audio),
		ImageRef:   cell(row, sc.spec.cols.image),
		StartRow:   start + 1,
		EndRow:     start + 1,
	}

	// The group header row doubles as sub-question 1 when it carries a
	// question number. Dropping this shifts every passage-per-row sheet
	// off by one sub-question.
	if n, ok := parseRowInt(cell(row, sc.spec.cols.subNumber)); ok {
		g.Subs = append(g.Subs, parseSubQuestion(row, sc.spec, n, start+1))
	}
	sc.pos++

	for sc.pos < len(sc.rows) {
		row = sc.rows[sc.pos]
		if rowBlank(row) {
			break
		}
		if sc.startsNewGroup(row) {
			break
		}
		if n, ok := parseRowInt(cell(row, sc.spec.cols.subNumber)); ok {
			g.Subs = append(g.Subs, parseSubQuestion(row, sc.spec, n, sc.pos+1))
			g.EndRow = sc.pos + 1
			sc.pos++
			continue
		}
		if sc.contentColumnsBlank(row) {
			// continuation/spacer row
			sc.pos++
			continue
		}
		break
	}
	return g, true
}

func (sc *groupScanner) startsNewGroup(row []string) bool {
	switch sc.spec.signal {
	case signalTitleColumn:
		return cell(row, sc.spec.cols.title) != ""
	case signalIndexColumn:
		_, ok := parseRowInt(cell(row, sc.spec.cols.index))
		return ok
	}
	return false
}

func (sc *groupScanner) contentColumnsBlank(row []string) bool {
	if cell(row, sc.spec.cols.subText) != "" {
		return false
	}
	for _, c := range sc.spec.cols.answers {
		if cell(row, c) != "" {
			return false
		}
	}
	return true
}

func parseSubQuestion(row []string, spec layoutSpec, number, sheetRow int) SubQuestion {
	return SubQuestion{
		Number:      number,
		Content:     cell(row, spec.cols.subText),
		Explanation: cell(row, spec.cols.explanation),
		Row:         sheetRow,
		Answers:     parseAnswers(row, spec),
	}
}

// parseAnswers reads the layout's answer columns up to the last non-empty
// one, assigning 1-based order indexes, then marks the answer named by the
// correct-letter column. An out-of-range or unparseable letter marks
// nothing; the exactly-one-correct validation reports it later.
func parseAnswers(row []string, spec layoutSpec) []AnswerPreview {
	values := make([]string, len(spec.cols.answers))
	last := -1
	for i, c := range spec.cols.answers {
		values[i] = cell(row, c)
		if values[i] != "" {
			last = i
		}
	}

	answers := make([]AnswerPreview, 0, last+1)
	for i := 0; i <= last; i++ {
		answers = append(answers, AnswerPreview{
			Content:    values[i],
			OrderIndex: i + 1,
		})
	}

	if idx, ok := correctLetterIndex(cell(row, spec.cols.correct)); ok && idx < len(answers) {
		answers[idx].IsCorrect = true
	}
	return answers
}

// correctLetterIndex maps a single letter A/B/C/D... to a zero-based index.
func correctLetterIndex(letter string) (int, bool) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
		return 0, false
	}
	return int(letter[0] - 'A'), true
}

func parseRowInt(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func rowBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

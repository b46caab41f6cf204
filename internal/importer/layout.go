package importer

import (
	"strings"

	"toeicbank/internal/category"
)

// groupSignal is how a new group is detected while scanning grouped rows.
type groupSignal int

const (
	signalNone        groupSignal = iota
	signalTitleColumn             // passage-style: non-empty group title starts a group
	signalIndexColumn             // audio/table-style: integer in the leading column starts a group
)

// columnMap fixes which worksheet column carries which field. -1 means the
// layout has no such column.
type columnMap struct {
	index       int
	title       int
	content     int
	audio       int
	image       int
	question    int
	subNumber   int
	subText     int
	answers     []int
	correct     int
	explanation int
	tags        int
}

type layoutSpec struct {
	headers      []string
	cols         columnMap
	answerCount  int
	requireAudio bool
	requireImage bool
	subMin       int
	subMax       int
	signal       groupSignal
}

var layoutSpecs = map[category.LayoutKind]layoutSpec{
	category.LayoutSingleAudioImage4: {
		headers: []string{"No", "Audio File", "Image File", "Answer A", "Answer B", "Answer C", "Answer D", "Correct", "Explanation", "Tags"},
		cols: columnMap{
			index: 0, audio: 1, image: 2,
			title: -1, content: -1, question: -1, subNumber: -1, subText: -1,
			answers: []int{3, 4, 5, 6}, correct: 7, explanation: 8, tags: 9,
		},
		answerCount:  4,
		requireAudio: true,
		requireImage: true,
	},
	category.LayoutSingleAudio3: {
		headers: []string{"No", "Audio File", "Answer A", "Answer B", "Answer C", "Correct", "Explanation", "Tags"},
		cols: columnMap{
			index: 0, audio: 1,
			title: -1, content: -1, image: -1, question: -1, subNumber: -1, subText: -1,
			answers: []int{2, 3, 4}, correct: 5, explanation: 6, tags: 7,
		},
		answerCount:  3,
		requireAudio: true,
	},
	category.LayoutSingleText4: {
		headers: []string{"No", "Question", "Answer A", "Answer B", "Answer C", "Answer D", "Correct", "Explanation", "Tags"},
		cols: columnMap{
			index: 0, question: 1,
			title: -1, content: -1, audio: -1, image: -1, subNumber: -1, subText: -1,
			answers: []int{2, 3, 4, 5}, correct: 6, explanation: 7, tags: 8,
		},
		answerCount: 4,
	},
	category.LayoutGroupedAudio: {
		headers: []string{"No", "Group Title", "Group Content", "Audio File", "Question No", "Question", "Answer A", "Answer B", "Answer C", "Answer D", "Correct", "Tags"},
		cols: columnMap{
			index: 0, title: 1, content: 2, audio: 3, subNumber: 4, subText: 5,
			image: -1, question: -1,
			answers: []int{6, 7, 8, 9}, correct: 10, explanation: -1, tags: 11,
		},
		answerCount:  4,
		requireAudio: true,
		subMin:       3,
		subMax:       3,
		signal:       signalIndexColumn,
	},
	category.LayoutGroupedText: {
		headers: []string{"No", "Group Title", "Group Content", "Question No", "Question", "Answer A", "Answer B", "Answer C", "Answer D", "Correct", "Explanation", "Tags"},
		cols: columnMap{
			index: 0, title: 1, content: 2, subNumber: 3, subText: 4,
			audio: -1, image: -1, question: -1,
			answers: []int{5, 6, 7, 8}, correct: 9, explanation: 10, tags: 11,
		},
		answerCount: 4,
		subMin:      4,
		subMax:      4,
		signal:      signalTitleColumn,
	},
	category.LayoutGroupedReading: {
		headers: []string{"No", "Group Title", "Group Content", "Question No", "Question", "Answer A", "Answer B", "Answer C", "Answer D", "Correct", "Explanation", "Tags"},
		cols: columnMap{
			index: 0, title: 1, content: 2, subNumber: 3, subText: 4,
			audio: -1, image: -1, question: -1,
			answers: []int{5, 6, 7, 8}, correct: 9, explanation: 10, tags: 11,
		},
		answerCount: 4,
		subMin:      2,
		subMax:      5,
		signal:      signalTitleColumn,
	},
}

func normalizeSheetName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// matchCategory resolves a worksheet to a category by substring containment
// in either direction, preferring the longest category name that matches.
func matchCategory(sheetName string, categories []category.Category) *category.Category {
	name := normalizeSheetName(sheetName)
	if name == "" {
		return nil
	}
	var best *category.Category
	bestLen := -1
	for i := range categories {
		catName := normalizeSheetName(categories[i].Name)
		if catName == "" {
			continue
		}
		if strings.Contains(name, catName) || strings.Contains(catName, name) {
			if len(catName) > bestLen {
				best = &categories[i]
				bestLen = len(catName)
			}
		}
	}
	return best
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

// headerMatches checks that every expected header appears in order within
// the actual header row, ignoring case, spaces, underscores, and any extra
// columns in between.
func headerMatches(expected, actual []string) bool {
	j := 0
	for _, want := range expected {
		w := normalizeHeader(want)
		found := false
		for ; j < len(actual); j++ {
			if normalizeHeader(actual[j]) == w {
				found = true
				j++
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

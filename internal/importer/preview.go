package importer

import (
	"sort"

	"toeicbank/internal/category"
)

// AnswerPreview is one parsed answer option. OrderIndex is 1-based and
// unique within the owning question; it, not slice position, drives
// signature building.
type AnswerPreview struct {
	Content    string `json:"content"`
	IsCorrect  bool   `json:"is_correct"`
	OrderIndex int    `json:"order_index"`
}

// PreviewItem is the parsed form of one worksheet item before persistence.
// Exactly two implementations exist: SingleQuestion and QuestionGroup.
type PreviewItem interface {
	HasError() bool
	previewItem()
}

// SingleQuestion is one row parsed from a single-item layout.
type SingleQuestion struct {
	CategoryID  int64           `json:"category_id"`
	Content     string          `json:"content,omitempty"`
	AudioRef    string          `json:"audio_ref,omitempty"`
	ImageRef    string          `json:"image_ref,omitempty"`
	Answers     []AnswerPreview `json:"answers"`
	Explanation string          `json:"explanation,omitempty"`
	Tags        string          `json:"tags,omitempty"`
	Row         int             `json:"row"`
	Errors      []ImportError   `json:"errors,omitempty"`
	IsDuplicate bool            `json:"is_duplicate,omitempty"`
}

func (q *SingleQuestion) previewItem() {}

func (q *SingleQuestion) HasError() bool { return len(q.Errors) > 0 }

// SubQuestion is one numbered question inside a group. Number is the value
// declared in the sheet, validated later against its position.
type SubQuestion struct {
	Number      int             `json:"number"`
	Content     string          `json:"content,omitempty"`
	Answers     []AnswerPreview `json:"answers"`
	Explanation string          `json:"explanation,omitempty"`
	Row         int             `json:"row"`
	Errors      []ImportError   `json:"errors,omitempty"`
	IsDuplicate bool            `json:"is_duplicate,omitempty"`
}

// QuestionGroup is a passage or recording shared by several sub-questions.
type QuestionGroup struct {
	CategoryID int64         `json:"category_id"`
	Title      string        `json:"title,omitempty"`
	Content    string        `json:"content,omitempty"`
	AudioRef   string        `json:"audio_ref,omitempty"`
	ImageRef   string        `json:"image_ref,omitempty"`
	Subs       []SubQuestion `json:"sub_questions"`
	StartRow   int           `json:"start_row"`
	EndRow     int           `json:"end_row"`
	Errors     []ImportError `json:"errors,omitempty"`
}

func (g *QuestionGroup) previewItem() {}

func (g *QuestionGroup) HasError() bool {
	if len(g.Errors) > 0 {
		return true
	}
	for i := range g.Subs {
		if len(g.Subs[i].Errors) > 0 {
			return true
		}
	}
	return false
}

// SheetPreview is the parse outcome for one worksheet.
type SheetPreview struct {
	SheetName    string              `json:"sheet_name"`
	CategoryID   int64               `json:"category_id,omitempty"`
	CategoryName string              `json:"category_name,omitempty"`
	Layout       category.LayoutKind `json:"layout,omitempty"`
	FatalError   *ImportError        `json:"fatal_error,omitempty"`
	Items        []PreviewItem       `json:"items"`
}

func (s *SheetPreview) HasError() bool {
	if s.FatalError != nil {
		return true
	}
	for _, it := range s.Items {
		if it.HasError() {
			return true
		}
	}
	return false
}

// ParseResult is the root aggregate returned by preview and consumed by
// import. Media holds the raw bytes of every allow-listed file found in the
// archive, keyed by normalized name, so the executor never touches the
// already-removed extraction directory.
type ParseResult struct {
	Sheets       []SheetPreview    `json:"sheets"`
	MissingMedia []string          `json:"missing_media"`
	Fatal        *ImportError      `json:"fatal,omitempty"`
	Media        map[string][]byte `json:"-"`

	// MediaKinds mirrors Media with the audio/image classification derived
	// from the original file extension.
	MediaKinds map[string]string `json:"-"`
}

// HasError is the single gate the executor trusts: derived, never stored.
func (r *ParseResult) HasError() bool {
	if r.Fatal != nil {
		return true
	}
	for i := range r.Sheets {
		if r.Sheets[i].HasError() {
			return true
		}
	}
	return false
}

// TotalItems counts items, with one group counting once regardless of
// its sub-question count.
func (r *ParseResult) TotalItems() int {
	n := 0
	for i := range r.Sheets {
		n += len(r.Sheets[i].Items)
	}
	return n
}

func (r *ParseResult) sortedMissingMedia() []string {
	out := append([]string(nil), r.MissingMedia...)
	sort.Strings(out)
	return out
}

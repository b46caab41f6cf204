package importer

import "fmt"

// Machine-readable codes attached to preview nodes. Messages stay free-form
// for the reviewing human; the code is what clients should branch on.
const (
	CodeInvalidArchive  = "INVALID_ARCHIVE"
	CodeMissingWorkbook = "MISSING_WORKBOOK"
	CodeUnknownSheet    = "UNKNOWN_SHEET"
	CodeHeaderMismatch  = "HEADER_MISMATCH"

	CodeAnswerCount  = "ANSWER_COUNT"
	CodeCorrectCount = "CORRECT_COUNT"
	CodeEmptyAnswer  = "EMPTY_ANSWER"
	CodeAudioMissing = "AUDIO_MISSING"
	CodeImageMissing = "IMAGE_MISSING"
	CodeSubCount     = "SUB_QUESTION_COUNT"
	CodeSubNumbering = "SUB_QUESTION_NUMBER"

	CodeDuplicateInFile        = "DUPLICATE_IN_FILE"
	CodeDuplicateAnswersInFile = "DUPLICATE_ANSWERS_IN_FILE"
	CodeDuplicateInBank        = "DUPLICATE_IN_BANK"
	CodeDuplicateAnswersInBank = "DUPLICATE_ANSWERS_IN_BANK"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityFatal Severity = "fatal"
)

type ImportError struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Row      int      `json:"row,omitempty"`
	Column   string   `json:"column,omitempty"`
	Severity Severity `json:"severity"`
}

func itemError(code string, row int, format string, args ...any) ImportError {
	return ImportError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Row:      row,
		Severity: SeverityError,
	}
}

func fatalError(code string, format string, args ...any) ImportError {
	return ImportError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityFatal,
	}
}

package category

import "fmt"

// LayoutKind tells the import parser how worksheet rows for a category are
// shaped. It is stored on the category record so parsing dispatches on a
// closed set instead of re-matching the category name.
type LayoutKind string

const (
	// One row = one question.
	LayoutSingleAudioImage4 LayoutKind = "single_audio_image_4" // Part 1: photo + audio, 4 answers
	LayoutSingleAudio3      LayoutKind = "single_audio_3"       // Part 2: audio only, 3 answers
	LayoutSingleText4       LayoutKind = "single_text_4"        // Part 5: text stem, 4 answers

	// Multiple rows share one passage or recording.
	LayoutGroupedAudio   LayoutKind = "grouped_audio"   // Parts 3/4: conversation or talk, 3 sub-questions
	LayoutGroupedText    LayoutKind = "grouped_text"    // Part 6: text completion, 4 sub-questions
	LayoutGroupedReading LayoutKind = "grouped_reading" // Part 7: reading passage, 2-5 sub-questions
)

var layoutKinds = map[LayoutKind]struct{}{
	LayoutSingleAudioImage4: {},
	LayoutSingleAudio3:      {},
	LayoutSingleText4:       {},
	LayoutGroupedAudio:      {},
	LayoutGroupedText:       {},
	LayoutGroupedReading:    {},
}

func ParseLayoutKind(v string) (LayoutKind, error) {
	k := LayoutKind(v)
	if _, ok := layoutKinds[k]; !ok {
		return "", fmt.Errorf("unknown layout kind %q", v)
	}
	return k, nil
}

func (k LayoutKind) Valid() bool {
	_, ok := layoutKinds[k]
	return ok
}

// Grouped reports whether items of this layout share a passage or recording
// across several sub-questions.
func (k LayoutKind) Grouped() bool {
	switch k {
	case LayoutGroupedAudio, LayoutGroupedText, LayoutGroupedReading:
		return true
	}
	return false
}

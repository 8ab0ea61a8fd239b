// Package marker splits streamed assistant text into a thought segment and an
// answer segment using the fixed in-band tags the reasoning profile asks the
// model to emit.
//
// Split is a pure function of its input. It is re-run over the whole
// accumulated text on every delta, which is quadratic in message length but
// fine at chat-message scale.
package marker

import "strings"

// Literal tags. They are matched as plain substrings.
const (
	ThoughtMarker = "【思考】"
	AnswerMarker  = "【回答】"
)

// NoThoughtPlaceholder stands in for the thought when the text opens with the
// answer tag.
const NoThoughtPlaceholder = "(no thought process provided)"

// Split is the segmentation of one assistant message.
type Split struct {
	Thought string `json:"thought,omitempty"`
	Answer  string `json:"answer"`
	// HasThought is set when a thought segment (or the placeholder) is present.
	HasThought bool `json:"has_thought"`
	// Answered is set once the answer tag has been honoured as a boundary.
	Answered bool `json:"answered"`
}

// SplitContent segments content. When both tags are present the first
// occurrence of each wins: the thought runs from the first thought tag to the
// next answer tag after it (or the end), and the answer runs from the first
// answer tag to the end.
func SplitContent(content string) Split {
	thoughtAt := strings.Index(content, ThoughtMarker)
	answerAt := strings.Index(content, AnswerMarker)

	switch {
	case thoughtAt < 0 && answerAt < 0:
		return Split{Answer: content}

	case thoughtAt < 0:
		if !strings.HasPrefix(strings.TrimSpace(content), AnswerMarker) {
			return Split{Answer: content}
		}
		return Split{
			Thought:    NoThoughtPlaceholder,
			Answer:     strings.TrimSpace(content[answerAt+len(AnswerMarker):]),
			HasThought: true,
			Answered:   true,
		}

	case answerAt < 0:
		return Split{
			Thought:    strings.TrimSpace(content[thoughtAt+len(ThoughtMarker):]),
			HasThought: true,
		}
	}

	thought := content[thoughtAt+len(ThoughtMarker):]
	if end := strings.Index(thought, AnswerMarker); end >= 0 {
		thought = thought[:end]
	}
	return Split{
		Thought:    strings.TrimSpace(thought),
		Answer:     strings.TrimSpace(content[answerAt+len(AnswerMarker):]),
		HasThought: true,
		Answered:   true,
	}
}

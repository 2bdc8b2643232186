package domain

// EffectType tags an outbound effect for transport encoding.
type EffectType string

const (
	EffectQuestion        EffectType = "questionPresented"
	EffectHint            EffectType = "hintRevealed"
	EffectResult          EffectType = "resultAnnounced"
	EffectAlreadyAnswered EffectType = "alreadyAnswered"
	EffectSnapshot        EffectType = "finalSnapshot"
)

// QuestionView is what the transport needs to present a question.
// The accepted answers are deliberately absent.
type QuestionView struct {
	Number int       `json:"number"` // 1-based position within the session
	Total  int       `json:"total"`
	Prompt string    `json:"prompt"`
	Media  *MediaRef `json:"media,omitempty"`
}

// HintView carries one revealed hint.
type HintView struct {
	Number int    `json:"number"` // 1-based hint index for the current question
	Text   string `json:"text"`
}

// ResultView announces how a question resolved.
//
// Three shapes occur: a correct answer (Correct true, Scorer and Points set),
// an incorrect attempt (Correct false, Scorer set, CorrectAnswer empty), and
// a window expiry or skip (Correct false, Scorer empty, CorrectAnswer set).
type ResultView struct {
	Correct        bool    `json:"correct"`
	Scorer         string  `json:"scorer,omitempty"`
	Points         int     `json:"points,omitempty"`
	ElapsedSeconds float64 `json:"elapsedSeconds,omitempty"`
	CorrectAnswer  string  `json:"correctAnswer,omitempty"`
}

// NoticeView flags a participant whose attempt for the current question was spent.
type NoticeView struct {
	Participant string `json:"participant"`
}

// Effect is an outbound engine event consumed by the transport collaborator.
// Exactly one payload field is populated, matching Type.
type Effect struct {
	Type     EffectType    `json:"type"`
	ChatID   string        `json:"chatId"`
	Question *QuestionView `json:"question,omitempty"`
	Hint     *HintView     `json:"hint,omitempty"`
	Result   *ResultView   `json:"result,omitempty"`
	Notice   *NoticeView   `json:"notice,omitempty"`
	Snapshot *Snapshot     `json:"snapshot,omitempty"`
}

package domain

import "fmt"

// MediaKind classifies a media attachment referenced by a question.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// MediaRef points at an attachment the transport layer knows how to deliver.
// The engine never opens the locator; it only decides when to emit it.
type MediaRef struct {
	Kind    MediaKind `json:"kind"`
	Locator string    `json:"locator"`
}

// Question is a single quiz question. Immutable once the bank is loaded.
type Question struct {
	ID           string    `json:"id"`
	Prompt       string    `json:"prompt"`
	Answer       string    `json:"answer"`
	Alternatives []string  `json:"alternatives,omitempty"`
	Hints        []string  `json:"hints,omitempty"`
	Media        *MediaRef `json:"media,omitempty"`
	Points       int       `json:"points"`            // defaults to the configured base if zero
	LimitSeconds int       `json:"limitSeconds"`      // defaults to the configured window if zero
	Numeric      bool      `json:"numeric,omitempty"` // enables tolerance matching
	Tolerance    float64   `json:"tolerance,omitempty"`
}

// Bank is an ordered, read-only collection of questions shared by all sessions.
type Bank struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Validate checks the bank schema before it is handed to the engine.
// A broken bank is rejected at load time, not at question time.
func (b Bank) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("%w: bank has no id", ErrBadSchema)
	}
	for i, q := range b.Questions {
		if q.Prompt == "" {
			return fmt.Errorf("%w: question %d has no prompt", ErrBadSchema, i)
		}
		if q.Answer == "" {
			return fmt.Errorf("%w: question %d has no answer", ErrBadSchema, i)
		}
		if q.Media != nil {
			switch q.Media.Kind {
			case MediaImage, MediaAudio, MediaVideo:
			default:
				return fmt.Errorf("%w: question %d has media kind %q", ErrBadSchema, i, q.Media.Kind)
			}
		}
	}
	return nil
}

// Mode selects how a session attributes scores.
type Mode string

const (
	ModeSolo Mode = "solo" // every player scores for themselves
	ModeTeam Mode = "team" // players score for their team, one attempt per team per question
)

// Standing is one scoreboard row in a snapshot, ordered best first.
type Standing struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Score         int    `json:"score"`
	Correct       int    `json:"correct"`
	Incorrect     int    `json:"incorrect"`
	BestLatencyMS int64  `json:"bestLatencyMs,omitempty"`
}

// Snapshot captures the full scoreboard of one session at a point in time.
type Snapshot struct {
	ChatID       string         `json:"chatId"`
	Standings    []Standing     `json:"standings"`
	TeamTotals   map[string]int `json:"teamTotals,omitempty"`
	StoppedEarly bool           `json:"stoppedEarly"`
}

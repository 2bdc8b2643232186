package domain

import "errors"

var (
	// ErrQuizRunning is returned when a start command hits a chat that already has a live session.
	ErrQuizRunning = errors.New("quiz already running in this chat")
	// ErrUnknownSession is returned for events addressed to a chat with no live session.
	ErrUnknownSession = errors.New("no quiz session for this chat")
	// ErrBankExhausted indicates the question cursor has no questions left to draw.
	ErrBankExhausted = errors.New("question bank exhausted")
	// ErrBankNotFound indicates the requested question bank could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrBadSchema indicates a question bank failed validation at load time.
	ErrBadSchema = errors.New("question bank schema invalid")
	// ErrNoQuestion is returned when an operation needs an active question and there is none.
	ErrNoQuestion = errors.New("no active question")
	// ErrHintTaken is returned when a player asks for a second private teaser on the same question.
	ErrHintTaken = errors.New("hint already taken for this question")
	// ErrHintQuota is returned when a player has used up their private teasers for the session.
	ErrHintQuota = errors.New("no hint allowance left")
	// ErrTooFewPlayers is returned when a team split is requested before enough players are known.
	ErrTooFewPlayers = errors.New("not enough known players to form teams")
	// ErrNoTeams is returned when team information is requested before a split.
	ErrNoTeams = errors.New("teams have not been formed")
)

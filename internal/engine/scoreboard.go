package engine

import (
	"sort"
	"time"

	"chat-quiz-engine/internal/domain"
)

// ScoreBoard aggregates scores for one session. Entries appear on the first
// recorded attempt and scores only ever grow. The board itself is not
// synchronized: the owning session applies events one at a time.
type scoreEntry struct {
	id          string
	name        string
	score       int
	correct     int
	incorrect   int
	bestLatency time.Duration
	lastScored  time.Time // when the current score was reached, used for tie-breaks
}

type ScoreBoard struct {
	entries map[string]*scoreEntry
}

func NewScoreBoard() *ScoreBoard {
	return &ScoreBoard{entries: make(map[string]*scoreEntry)}
}

// Record applies one judged attempt. delta must be non-negative; incorrect
// attempts pass zero and only bump the incorrect counter.
func (b *ScoreBoard) Record(id, name string, delta int, correct bool, latency time.Duration, at time.Time) {
	e, ok := b.entries[id]
	if !ok {
		e = &scoreEntry{id: id, name: name, lastScored: at}
		b.entries[id] = e
	}
	if name != "" {
		e.name = name
	}
	if correct {
		e.correct++
		if delta > 0 {
			e.score += delta
			e.lastScored = at
		}
		if e.bestLatency == 0 || latency < e.bestLatency {
			e.bestLatency = latency
		}
	} else {
		e.incorrect++
	}
}

// Total returns the current score for a participant, zero if unknown.
func (b *ScoreBoard) Total(id string) int {
	if e, ok := b.entries[id]; ok {
		return e.score
	}
	return 0
}

// Len reports how many participants have an entry.
func (b *ScoreBoard) Len() int { return len(b.entries) }

// Standings returns the board ordered by score descending, ties broken by
// who reached the score first, then by display name for determinism.
func (b *ScoreBoard) Standings() []domain.Standing {
	ordered := make([]*scoreEntry, 0, len(b.entries))
	for _, e := range b.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		if !ordered[i].lastScored.Equal(ordered[j].lastScored) {
			return ordered[i].lastScored.Before(ordered[j].lastScored)
		}
		return ordered[i].name < ordered[j].name
	})

	standings := make([]domain.Standing, 0, len(ordered))
	for _, e := range ordered {
		standings = append(standings, domain.Standing{
			ParticipantID: e.id,
			DisplayName:   e.name,
			Score:         e.score,
			Correct:       e.correct,
			Incorrect:     e.incorrect,
			BestLatencyMS: e.bestLatency.Milliseconds(),
		})
	}
	return standings
}

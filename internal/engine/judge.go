package engine

import (
	"strconv"
	"strings"

	"chat-quiz-engine/internal/domain"
)

// Normalize lowercases, trims and collapses internal whitespace so that
// "  New  York " and "new york" compare equal.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Judge decides whether a submission matches one of a question's accepted
// answers. It is a pure function: deterministic, no state, no side effects.
func Judge(q domain.Question, submission string) bool {
	sub := Normalize(submission)
	if sub == "" {
		return false
	}
	if q.Numeric {
		return judgeNumeric(q, sub)
	}
	if sub == Normalize(q.Answer) {
		return true
	}
	for _, alt := range q.Alternatives {
		if sub == Normalize(alt) {
			return true
		}
	}
	return false
}

// judgeNumeric compares parsed values within the question's tolerance.
// Answers that do not parse fall back to exact string matching, so a
// numeric question can still accept a spelled-out alternative.
func judgeNumeric(q domain.Question, normalized string) bool {
	got, gotErr := strconv.ParseFloat(strings.ReplaceAll(normalized, ",", "."), 64)
	for _, accepted := range append([]string{q.Answer}, q.Alternatives...) {
		want, err := strconv.ParseFloat(strings.TrimSpace(accepted), 64)
		if gotErr == nil && err == nil {
			diff := got - want
			if diff < 0 {
				diff = -diff
			}
			if diff <= q.Tolerance {
				return true
			}
			continue
		}
		if normalized == Normalize(accepted) {
			return true
		}
	}
	return false
}

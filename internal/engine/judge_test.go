package engine_test

import (
	"testing"

	"chat-quiz-engine/internal/domain"
	"chat-quiz-engine/internal/engine"
)

func TestJudgeNormalizesWhitespaceAndCase(t *testing.T) {
	q := domain.Question{Prompt: "?", Answer: "New York"}

	for _, submission := range []string{"new york", "  NEW   YORK  ", "New\tYork"} {
		if !engine.Judge(q, submission) {
			t.Fatalf("expected %q to match %q", submission, q.Answer)
		}
	}
	if engine.Judge(q, "newyork") {
		t.Fatalf("expected collapsed-words submission to be rejected")
	}
	if engine.Judge(q, "") {
		t.Fatalf("expected empty submission to be rejected")
	}
}

func TestJudgeAcceptsAlternatives(t *testing.T) {
	q := domain.Question{
		Prompt:       "?",
		Answer:       "United States",
		Alternatives: []string{"USA", "the united states"},
	}

	if !engine.Judge(q, "usa") {
		t.Fatalf("expected alternative to match")
	}
	if !engine.Judge(q, "The United States") {
		t.Fatalf("expected normalized alternative to match")
	}
	if engine.Judge(q, "america") {
		t.Fatalf("expected unlisted synonym to be rejected")
	}
}

func TestJudgeNumericTolerance(t *testing.T) {
	q := domain.Question{Prompt: "?", Answer: "3.14", Numeric: true, Tolerance: 0.01}

	if !engine.Judge(q, "3.14") {
		t.Fatalf("expected exact value to match")
	}
	if !engine.Judge(q, "3.145") {
		t.Fatalf("expected value within tolerance to match")
	}
	if !engine.Judge(q, "3,14") {
		t.Fatalf("expected comma decimal separator to match")
	}
	if engine.Judge(q, "3.2") {
		t.Fatalf("expected value outside tolerance to be rejected")
	}
}

func TestJudgeNumericFallsBackToText(t *testing.T) {
	q := domain.Question{Prompt: "?", Answer: "100", Alternatives: []string{"one hundred"}, Numeric: true}

	if !engine.Judge(q, "One Hundred") {
		t.Fatalf("expected spelled-out alternative to match on a numeric question")
	}
}

func TestJudgeIsDeterministic(t *testing.T) {
	q := domain.Question{Prompt: "?", Answer: "mars"}
	for i := 0; i < 100; i++ {
		if !engine.Judge(q, "Mars") {
			t.Fatalf("judge flapped on iteration %d", i)
		}
	}
}

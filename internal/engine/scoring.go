package engine

import (
	"math"
	"time"
)

// DecayCurve selects the shape of the speed bonus. The curve is
// configuration, not code: both shapes honor the same floor clamp.
type DecayCurve string

const (
	DecayLinear      DecayCurve = "linear"
	DecayExponential DecayCurve = "exponential"
)

// ScoringRules computes points for a correct answer from elapsed time and
// revealed hints. Both factors are monotonically non-increasing and the
// result never drops below Floor of the base value, so speed and hint usage
// always matter but never zero out a correct answer.
type ScoringRules struct {
	Floor       float64    // minimum fraction of base awarded, e.g. 0.10
	Curve       DecayCurve // linear by default
	HintPenalty float64    // multiplier lost per revealed hint, e.g. 0.2
}

// DefaultScoringRules mirror the point ladder of the original chat quizzes:
// full points for instant answers, about a fifth of the pot gone per hint.
func DefaultScoringRules() ScoringRules {
	return ScoringRules{Floor: 0.10, Curve: DecayLinear, HintPenalty: 0.2}
}

// Score returns the points awarded for a correct answer.
func (r ScoringRules) Score(base int, elapsed, limit time.Duration, hintsRevealed int) int {
	if base <= 0 {
		base = 1
	}
	factor := r.decay(fraction(elapsed, limit)) * r.penalty(hintsRevealed)
	if factor < r.Floor {
		factor = r.Floor
	}
	points := int(math.Round(float64(base) * factor))
	if min := int(math.Ceil(r.Floor * float64(base))); points < min {
		points = min
	}
	if points > base {
		points = base
	}
	if points < 1 {
		points = 1
	}
	return points
}

func (r ScoringRules) decay(x float64) float64 {
	switch r.Curve {
	case DecayExponential:
		return math.Exp(-3 * x)
	default:
		return 1 - (1-r.Floor)*x
	}
}

func (r ScoringRules) penalty(hints int) float64 {
	p := 1 - r.HintPenalty*float64(hints)
	if p < 0 {
		p = 0
	}
	return p
}

func fraction(elapsed, limit time.Duration) float64 {
	if limit <= 0 {
		return 0
	}
	x := float64(elapsed) / float64(limit)
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

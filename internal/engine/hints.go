package engine

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"unicode"

	"chat-quiz-engine/internal/domain"
)

// revealRatios is the cumulative share of answer letters shown by each
// generated hint step. The first step shows only the shape of the answer.
var revealRatios = []float64{0, 0.2, 0.4, 0.6}

// hintPlan holds the precomputed hint texts for one question. Questions with
// an explicit hint list use it verbatim; all others get progressive
// letter-reveal masks built from the primary answer.
type hintPlan struct {
	steps []string
}

func buildHintPlan(q domain.Question, rnd *rand.Rand) hintPlan {
	if len(q.Hints) > 0 {
		return hintPlan{steps: q.Hints}
	}
	runes := []rune(q.Answer)
	order := make([]int, 0, len(runes))
	for i, r := range runes {
		if !unicode.IsSpace(r) {
			order = append(order, i)
		}
	}
	rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	steps := make([]string, 0, len(revealRatios))
	for _, ratio := range revealRatios {
		count := int(math.Ceil(float64(len(order)) * ratio))
		if count > len(order) {
			count = len(order)
		}
		revealed := make(map[int]bool, count)
		for _, idx := range order[:count] {
			revealed[idx] = true
		}
		steps = append(steps, maskAnswer(runes, revealed))
	}
	return hintPlan{steps: steps}
}

func (p hintPlan) count() int { return len(p.steps) }

func (p hintPlan) step(i int) string {
	if i < 0 || i >= len(p.steps) {
		return ""
	}
	return p.steps[i]
}

// maskAnswer renders the answer with hidden letters as underscores, revealed
// letters in place and word gaps widened, e.g. "p_ r_ s".
func maskAnswer(answer []rune, revealed map[int]bool) string {
	var b strings.Builder
	for i, r := range answer {
		switch {
		case unicode.IsSpace(r):
			b.WriteString("  ")
		case revealed[i]:
			b.WriteRune(r)
		default:
			b.WriteString("_ ")
		}
	}
	return strings.TrimSpace(b.String())
}

// Teaser is the on-demand hint sent privately to a single player: the first
// letter and the length, enough to nudge without spoiling the room.
func Teaser(q domain.Question) string {
	runes := []rune(q.Answer)
	if len(runes) == 0 {
		return ""
	}
	return fmt.Sprintf("starts with %q and has %d characters", string(runes[0]), len(runes))
}

package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"chat-quiz-engine/internal/domain"
	"chat-quiz-engine/internal/engine"
	"chat-quiz-engine/internal/infra/memory"
)

// fakeClock lets tests pin elapsed time exactly.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeScheduler records armed timers and lets tests fire them by hand, so
// session scenarios run without sleeping.
type fakeTimer struct {
	d    time.Duration
	fire func(engine.TimerToken)
}

type fakeScheduler struct {
	mu    sync.Mutex
	armed map[engine.TimerToken]fakeTimer
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{armed: make(map[engine.TimerToken]fakeTimer)}
}

func (f *fakeScheduler) Arm(token engine.TimerToken, d time.Duration, fire func(engine.TimerToken)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.armed[token]; ok {
		return
	}
	f.armed[token] = fakeTimer{d: d, fire: fire}
}

func (f *fakeScheduler) Cancel(token engine.TimerToken) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.armed, token)
}

func (f *fakeScheduler) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.armed)
}

func (f *fakeScheduler) has(token engine.TimerToken) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.armed[token]
	return ok
}

func (f *fakeScheduler) lookup(kind engine.TimerKind) (engine.TimerToken, fakeTimer, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, timer := range f.armed {
		if token.Kind == kind {
			return token, timer, true
		}
	}
	return engine.TimerToken{}, fakeTimer{}, false
}

// fireKind simulates the wall clock reaching an armed timer: the timer is
// unregistered first and then delivered, exactly like the real scheduler.
func (f *fakeScheduler) fireKind(t *testing.T, kind engine.TimerKind) {
	t.Helper()
	token, timer, ok := f.lookup(kind)
	if !ok {
		t.Fatalf("no %v timer armed", kind)
	}
	f.Cancel(token)
	timer.fire(token)
}

func testBank() map[string]domain.Bank {
	return map[string]domain.Bank{
		"general": {
			ID: "general",
			Questions: []domain.Question{
				{
					ID:           "q1",
					Prompt:       "Which planet is known as the Red Planet?",
					Answer:       "Mars",
					Hints:        []string{"h1", "h2"},
					Points:       100,
					LimitSeconds: 30,
				},
				{
					ID:           "q2",
					Prompt:       "What color is the sky?",
					Answer:       "blue",
					Points:       50,
					LimitSeconds: 20,
				},
			},
		},
	}
}

func newTestManager(t *testing.T, cfg engine.Config, banks map[string]domain.Bank) (*engine.Manager, *memory.SessionStore, *fakeScheduler, *fakeClock) {
	t.Helper()
	store := memory.NewSessionStore()
	repo := memory.NewBankRepository(memory.NewStaticBankLoader(banks), 5*time.Minute)
	sched := newFakeScheduler()
	clock := newFakeClock()
	manager := engine.NewManagerWithClock(store, repo, sched, cfg, clock.Now, 7)
	return manager, store, sched, clock
}

func testConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.AdvanceDelay = 0 // advance inline unless a test overrides
	return cfg
}

func next(t *testing.T, ch <-chan domain.Effect, want domain.EffectType) domain.Effect {
	t.Helper()
	select {
	case eff := <-ch:
		if eff.Type != want {
			t.Fatalf("expected effect %s, got %s (%+v)", want, eff.Type, eff)
		}
		return eff
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for effect %s", want)
		return domain.Effect{}
	}
}

func expectQuiet(t *testing.T, ch <-chan domain.Effect) {
	t.Helper()
	select {
	case eff := <-ch:
		t.Fatalf("expected no effect, got %s (%+v)", eff.Type, eff)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestStartPresentsFirstQuestionAndArmsTimers(t *testing.T) {
	manager, _, sched, _ := newTestManager(t, testConfig(), testBank())

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "general"); err != nil {
		t.Fatalf("start: %v", err)
	}

	ch, cancel, err := manager.Subscribe("chat-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	eff := next(t, ch, domain.EffectQuestion)
	if eff.Question.Number != 1 || eff.Question.Total != 2 {
		t.Fatalf("expected question 1 of 2, got %+v", eff.Question)
	}
	if eff.Question.Prompt == "" {
		t.Fatalf("expected a prompt")
	}

	if sched.pending() != 2 {
		t.Fatalf("expected hint + window timers armed, got %d", sched.pending())
	}
	if _, hintTimer, ok := sched.lookup(engine.TimerHint); !ok {
		t.Fatalf("hint timer not armed")
	} else if hintTimer.d != 10*time.Second {
		// 30s window, two hints: limit / (hints+1)
		t.Fatalf("expected hint interval 10s, got %v", hintTimer.d)
	}
	if _, windowTimer, ok := sched.lookup(engine.TimerWindow); !ok {
		t.Fatalf("window timer not armed")
	} else if windowTimer.d != 30*time.Second {
		t.Fatalf("expected window at 30s, got %v", windowTimer.d)
	}
}

func TestDuplicateStartFails(t *testing.T) {
	manager, _, _, _ := newTestManager(t, testConfig(), testBank())

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "general"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "general"); !errors.Is(err, domain.ErrQuizRunning) {
		t.Fatalf("expected ErrQuizRunning, got %v", err)
	}
}

func TestEventsForUnknownChat(t *testing.T) {
	manager, _, _, clock := newTestManager(t, testConfig(), testBank())

	if err := manager.Answer("nowhere", "u1", "Alice", "mars", clock.Now()); !errors.Is(err, domain.ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession for answer, got %v", err)
	}
	if err := manager.Skip("nowhere"); !errors.Is(err, domain.ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession for skip, got %v", err)
	}
	if err := manager.Stop("nowhere"); !errors.Is(err, domain.ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession for stop, got %v", err)
	}
	if _, err := manager.Scores("nowhere"); !errors.Is(err, domain.ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession for scores, got %v", err)
	}
}

func TestCorrectAnswerScoresAndAdvances(t *testing.T) {
	manager, _, sched, clock := newTestManager(t, testConfig(), testBank())

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "general"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch, cancel, _ := manager.Subscribe("chat-1")
	defer cancel()
	next(t, ch, domain.EffectQuestion)

	clock.Advance(5 * time.Second)
	if err := manager.Answer("chat-1", "u1", "Alice", " MARS ", clock.Now()); err != nil {
		t.Fatalf("answer: %v", err)
	}

	result := next(t, ch, domain.EffectResult)
	if !result.Result.Correct || result.Result.Scorer != "Alice" {
		t.Fatalf("expected Alice to score, got %+v", result.Result)
	}
	// linear decay, 5s of a 30s window: 100 × (1 − 0.9·(5/30)) = 85
	if result.Result.Points != 85 {
		t.Fatalf("expected 85 points, got %d", result.Result.Points)
	}
	if result.Result.CorrectAnswer != "Mars" {
		t.Fatalf("expected revealed answer, got %q", result.Result.CorrectAnswer)
	}

	// Zero advance delay: the next question follows in the same transition.
	eff := next(t, ch, domain.EffectQuestion)
	if eff.Question.Number != 2 {
		t.Fatalf("expected question 2, got %+v", eff.Question)
	}
	if sched.pending() != 2 {
		t.Fatalf("expected fresh timers for question 2, got %d armed", sched.pending())
	}

	snap, err := manager.Scores("chat-1")
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	if len(snap.Standings) != 1 || snap.Standings[0].Score != 85 {
		t.Fatalf("expected Alice at 85, got %+v", snap.Standings)
	}
}

func TestIncorrectAnswerSpendsAttempt(t *testing.T) {
	manager, _, sched, clock := newTestManager(t, testConfig(), testBank())

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "general"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch, cancel, _ := manager.Subscribe("chat-1")
	defer cancel()
	next(t, ch, domain.EffectQuestion)

	if err := manager.Answer("chat-1", "u1", "Alice", "venus", clock.Now()); err != nil {
		t.Fatalf("answer: %v", err)
	}
	result := next(t, ch, domain.EffectResult)
	if result.Result.Correct || result.Result.Scorer != "Alice" {
		t.Fatalf("expected incorrect attempt by Alice, got %+v", result.Result)
	}
	if result.Result.CorrectAnswer != "" {
		t.Fatalf("incorrect attempt must not reveal the answer")
	}
	if sched.pending() != 2 {
		t.Fatalf("incorrect answer must not cancel timers")
	}

	// The second submission, even the right one, is spent.
	if err := manager.Answer("chat-1", "u1", "Alice", "mars", clock.Now()); err != nil {
		t.Fatalf("answer: %v", err)
	}
	notice := next(t, ch, domain.EffectAlreadyAnswered)
	if notice.Notice.Participant != "Alice" {
		t.Fatalf("expected notice for Alice, got %+v", notice.Notice)
	}

	snap, _ := manager.Scores("chat-1")
	if snap.Standings[0].Score != 0 || snap.Standings[0].Incorrect != 1 {
		t.Fatalf("expected one unscored incorrect attempt, got %+v", snap.Standings[0])
	}

	// Another player can still take the question.
	if err := manager.Answer("chat-1", "u2", "Bob", "mars", clock.Now()); err != nil {
		t.Fatalf("answer: %v", err)
	}
	result = next(t, ch, domain.EffectResult)
	if !result.Result.Correct || result.Result.Scorer != "Bob" {
		t.Fatalf("expected Bob to score, got %+v", result.Result)
	}
}

func TestHintTimerRevealsAndRearms(t *testing.T) {
	manager, _, sched, _ := newTestManager(t, testConfig(), testBank())

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "general"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch, cancel, _ := manager.Subscribe("chat-1")
	defer cancel()
	next(t, ch, domain.EffectQuestion)

	sched.fireKind(t, engine.TimerHint)
	hint := next(t, ch, domain.EffectHint)
	if hint.Hint.Number != 1 || hint.Hint.Text != "h1" {
		t.Fatalf("expected first hint, got %+v", hint.Hint)
	}
	if _, _, ok := sched.lookup(engine.TimerHint); !ok {
		t.Fatalf("expected hint timer re-armed while hints remain")
	}

	sched.fireKind(t, engine.TimerHint)
	hint = next(t, ch, domain.EffectHint)
	if hint.Hint.Number != 2 || hint.Hint.Text != "h2" {
		t.Fatalf("expected second hint, got %+v", hint.Hint)
	}
	if _, _, ok := sched.lookup(engine.TimerHint); ok {
		t.Fatalf("no hints left, hint timer must not re-arm")
	}
	if _, _, ok := sched.lookup(engine.TimerWindow); !ok {
		t.Fatalf("window timer must stay live after the last hint")
	}
}

func TestHintsReduceScore(t *testing.T) {
	manager, _, sched, clock := newTestManager(t, testConfig(), testBank())

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "general"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch, cancel, _ := manager.Subscribe("chat-1")
	defer cancel()
	next(t, ch, domain.EffectQuestion)

	sched.fireKind(t, engine.TimerHint)
	next(t, ch, domain.EffectHint)
	sched.fireKind(t, engine.TimerHint)
	next(t, ch, domain.EffectHint)

	clock.Advance(5 * time.Second)
	if err := manager.Answer("chat-1", "u1", "Alice", "mars", clock.Now()); err != nil {
		t.Fatalf("answer: %v", err)
	}
	result := next(t, ch, domain.EffectResult)
	// Same 5s elapsed as the unhinted case (85) but two hints cost 40%.
	if result.Result.Points >= 85 {
		t.Fatalf("expected hint penalty to bite, got %d points", result.Result.Points)
	}
	if result.Result.Points < 10 {
		t.Fatalf("expected floor of 10%% of base, got %d", result.Result.Points)
	}
}

func TestWindowExpiryResolvesWithNoScorer(t *testing.T) {
	manager, _, sched, _ := newTestManager(t, testConfig(), testBank())

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "general"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch, cancel, _ := manager.Subscribe("chat-1")
	defer cancel()
	next(t, ch, domain.EffectQuestion)

	staleHint, _, ok := sched.lookup(engine.TimerHint)
	if !ok {
		t.Fatalf("hint timer not armed")
	}

	sched.fireKind(t, engine.TimerWindow)
	result := next(t, ch, domain.EffectResult)
	if result.Result.Correct || result.Result.Scorer != "" {
		t.Fatalf("expected unscored expiry, got %+v", result.Result)
	}
	if result.Result.CorrectAnswer != "Mars" {
		t.Fatalf("expected answer reveal on expiry, got %q", result.Result.CorrectAnswer)
	}
	if sched.has(staleHint) {
		t.Fatalf("expiry must cancel the outstanding hint timer")
	}

	// Board untouched, next question presented.
	snap, _ := manager.Scores("chat-1")
	if len(snap.Standings) != 0 {
		t.Fatalf("expected empty board after unanswered question, got %+v", snap.Standings)
	}
	eff := next(t, ch, domain.EffectQuestion)
	if eff.Question.Number != 2 {
		t.Fatalf("expected question 2 after expiry, got %+v", eff.Question)
	}
}

func TestSkipActsLikeExpiry(t *testing.T) {
	manager, _, sched, _ := newTestManager(t, testConfig(), testBank())

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "general"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch, cancel, _ := manager.Subscribe("chat-1")
	defer cancel()
	next(t, ch, domain.EffectQuestion)

	if err := manager.Skip("chat-1"); err != nil {
		t.Fatalf("skip: %v", err)
	}
	result := next(t, ch, domain.EffectResult)
	if result.Result.Correct || result.Result.CorrectAnswer != "Mars" {
		t.Fatalf("expected skip to reveal answer without a scorer, got %+v", result.Result)
	}
	eff := next(t, ch, domain.EffectQuestion)
	if eff.Question.Number != 2 {
		t.Fatalf("expected next question after skip, got %+v", eff.Question)
	}
	if sched.pending() != 2 {
		t.Fatalf("expected only question 2 timers, got %d", sched.pending())
	}
}

func TestStopTearsDownSession(t *testing.T) {
	manager, store, sched, clock := newTestManager(t, testConfig(), testBank())

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "general"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch, cancel, _ := manager.Subscribe("chat-1")
	defer cancel()
	next(t, ch, domain.EffectQuestion)

	if err := manager.Stop("chat-1"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	snap := next(t, ch, domain.EffectSnapshot)
	if !snap.Snapshot.StoppedEarly {
		t.Fatalf("expected stopped-early snapshot")
	}
	if len(snap.Snapshot.Standings) != 0 {
		t.Fatalf("expected zero scored questions, got %+v", snap.Snapshot.Standings)
	}
	if sched.pending() != 0 {
		t.Fatalf("stop must cancel all timers, %d still armed", sched.pending())
	}
	if store.Len() != 0 {
		t.Fatalf("expected session removed from registry")
	}
	if err := manager.Answer("chat-1", "u1", "Alice", "mars", clock.Now()); !errors.Is(err, domain.ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession after stop, got %v", err)
	}
}

func TestSessionCompletesWhenBankExhausted(t *testing.T) {
	banks := map[string]domain.Bank{
		"tiny": {ID: "tiny", Questions: []domain.Question{
			{ID: "q1", Prompt: "?", Answer: "yes", Points: 10, LimitSeconds: 10},
		}},
	}
	manager, store, sched, clock := newTestManager(t, testConfig(), banks)

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "tiny"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch, cancel, _ := manager.Subscribe("chat-1")
	defer cancel()
	next(t, ch, domain.EffectQuestion)

	if err := manager.Answer("chat-1", "u1", "Alice", "yes", clock.Now()); err != nil {
		t.Fatalf("answer: %v", err)
	}
	next(t, ch, domain.EffectResult)
	snap := next(t, ch, domain.EffectSnapshot)
	if snap.Snapshot.StoppedEarly {
		t.Fatalf("completed session must not flag stopped-early")
	}
	if len(snap.Snapshot.Standings) != 1 || snap.Snapshot.Standings[0].Score != 10 {
		t.Fatalf("expected Alice's final score, got %+v", snap.Snapshot.Standings)
	}
	if store.Len() != 0 {
		t.Fatalf("expected completed session removed")
	}
	if sched.pending() != 0 {
		t.Fatalf("expected no timers after completion")
	}
}

func TestStartOnEmptyBankFails(t *testing.T) {
	banks := map[string]domain.Bank{"empty": {ID: "empty"}}
	manager, store, _, _ := newTestManager(t, testConfig(), banks)

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "empty"); !errors.Is(err, domain.ErrBankExhausted) {
		t.Fatalf("expected ErrBankExhausted, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("failed start must not register a session")
	}
}

func TestStaleTimerFiringsAreSuppressed(t *testing.T) {
	cfg := testConfig()
	cfg.AdvanceDelay = 10 * time.Second // hold in Resolved so staleness is observable
	manager, _, sched, clock := newTestManager(t, cfg, testBank())

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "general"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch, cancel, _ := manager.Subscribe("chat-1")
	defer cancel()
	next(t, ch, domain.EffectQuestion)

	// Capture the question-1 timers as a racing wall clock would hold them.
	hintToken, hintTimer, ok := sched.lookup(engine.TimerHint)
	if !ok {
		t.Fatalf("hint timer not armed")
	}
	windowToken, windowTimer, ok := sched.lookup(engine.TimerWindow)
	if !ok {
		t.Fatalf("window timer not armed")
	}

	clock.Advance(3 * time.Second)
	if err := manager.Answer("chat-1", "u1", "Alice", "mars", clock.Now()); err != nil {
		t.Fatalf("answer: %v", err)
	}
	next(t, ch, domain.EffectResult)

	// The raced firings arrive after resolution: both must be dropped.
	hintTimer.fire(hintToken)
	windowTimer.fire(windowToken)
	expectQuiet(t, ch)

	snap, _ := manager.Scores("chat-1")
	if snap.Standings[0].Score == 0 {
		t.Fatalf("expected Alice's points intact, got %+v", snap.Standings[0])
	}

	// Move on to question 2; the stale hint token is one generation behind.
	sched.fireKind(t, engine.TimerAdvance)
	next(t, ch, domain.EffectQuestion)
	hintTimer.fire(hintToken)
	expectQuiet(t, ch)
}

func TestSubscribeReplaysActiveQuestionAndHints(t *testing.T) {
	manager, _, sched, _ := newTestManager(t, testConfig(), testBank())

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "general"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Reveal one hint before anyone is listening.
	sched.fireKind(t, engine.TimerHint)

	ch, cancel, err := manager.Subscribe("chat-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	eff := next(t, ch, domain.EffectQuestion)
	if eff.Question.Number != 1 {
		t.Fatalf("expected replay of question 1, got %+v", eff.Question)
	}
	hint := next(t, ch, domain.EffectHint)
	if hint.Hint.Number != 1 || hint.Hint.Text != "h1" {
		t.Fatalf("expected replay of revealed hint, got %+v", hint.Hint)
	}
}

func TestCurrentHintTeaser(t *testing.T) {
	manager, _, _, _ := newTestManager(t, testConfig(), testBank())

	if _, err := manager.CurrentHint("chat-1", "u1"); !errors.Is(err, domain.ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "general"); err != nil {
		t.Fatalf("start: %v", err)
	}
	teaser, err := manager.CurrentHint("chat-1", "u1")
	if err != nil {
		t.Fatalf("hint: %v", err)
	}
	if teaser == "" {
		t.Fatalf("expected a teaser for the active question")
	}

	// One teaser per player per question; other players are unaffected.
	if _, err := manager.CurrentHint("chat-1", "u1"); !errors.Is(err, domain.ErrHintTaken) {
		t.Fatalf("expected ErrHintTaken on a repeat request, got %v", err)
	}
	if _, err := manager.CurrentHint("chat-1", "u2"); err != nil {
		t.Fatalf("expected another player to get a teaser, got %v", err)
	}
}

func TestTeaserAllowancePerSession(t *testing.T) {
	questions := make([]domain.Question, 4)
	for i := range questions {
		questions[i] = domain.Question{
			ID:           fmt.Sprintf("q%d", i+1),
			Prompt:       "?",
			Answer:       "yes",
			Points:       10,
			LimitSeconds: 30,
		}
	}
	banks := map[string]domain.Bank{"long": {ID: "long", Questions: questions}}
	manager, _, _, _ := newTestManager(t, testConfig(), banks)

	if err := manager.Start(context.Background(), "chat-1", domain.ModeSolo, "long"); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := manager.CurrentHint("chat-1", "u1"); err != nil {
			t.Fatalf("teaser %d: %v", i+1, err)
		}
		if err := manager.Skip("chat-1"); err != nil {
			t.Fatalf("skip: %v", err)
		}
	}

	// Fourth question, but the session allowance is spent.
	if _, err := manager.CurrentHint("chat-1", "u1"); !errors.Is(err, domain.ErrHintQuota) {
		t.Fatalf("expected ErrHintQuota, got %v", err)
	}
	if _, err := manager.CurrentHint("chat-1", "u2"); err != nil {
		t.Fatalf("expected a fresh player to still get a teaser, got %v", err)
	}
}

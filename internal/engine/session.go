package engine

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"chat-quiz-engine/internal/domain"
)

// Phase is the current step of a session's state machine.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseAwaitingAnswer
	PhaseResolved
	PhaseComplete
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingAnswer:
		return "awaitingAnswer"
	case PhaseResolved:
		return "resolved"
	case PhaseComplete:
		return "complete"
	case PhaseStopped:
		return "stopped"
	}
	return "unknown"
}

// Config carries the engine tunables shared by every session.
type Config struct {
	Scoring      ScoringRules
	BasePoints   int           // points for questions that do not set their own
	Window       time.Duration // answer window for questions that do not set their own
	AdvanceDelay time.Duration // pause between a resolution and the next question
	Shuffle      bool          // draw questions in random order
	TeamA        string
	TeamB        string
}

func DefaultConfig() Config {
	return Config{
		Scoring:      DefaultScoringRules(),
		BasePoints:   5,
		Window:       30 * time.Second,
		AdvanceDelay: 10 * time.Second,
		Shuffle:      false,
		TeamA:        "A",
		TeamB:        "B",
	}
}

// activeQuestion is the per-question slice of session state. It is rebuilt
// for every draw; the answered set is what blocks double scoring.
type activeQuestion struct {
	q           domain.Question
	number      int // 1-based position within the session
	startedAt   time.Time
	limit       time.Duration
	base        int
	hints       hintPlan
	interval    time.Duration
	revealed    int
	answered    map[string]struct{} // scoring identities spent for this question
	teaserTaken map[string]struct{} // players who pulled a private teaser for this question
}

// Session is the state machine for one chat. All events (answers, timer
// firings, control commands) serialize on mu, so at most one transition is
// in flight and timer races resolve at the lock, never inside the machine.
type Session struct {
	chatID string
	mode   domain.Mode
	bank   domain.Bank
	order  []int
	cfg    Config
	sched  Scheduler
	now    func() time.Time
	rnd    *rand.Rand

	onTerminal func() // invoked once, outside the lock, when the session ends

	mu          sync.Mutex
	phase       Phase
	generation  uint64
	cursor      int
	current     *activeQuestion
	roster      *Roster
	board       *ScoreBoard
	teaserUsed  map[string]int // private teasers pulled per player this session
	subscribers map[chan domain.Effect]struct{}
}

// teaserAllowance caps the private teasers one player can pull per session.
const teaserAllowance = 3

func newSession(chatID string, mode domain.Mode, bank domain.Bank, cfg Config, sched Scheduler, now func() time.Time, rnd *rand.Rand, onTerminal func()) *Session {
	order := make([]int, len(bank.Questions))
	for i := range order {
		order[i] = i
	}
	if cfg.Shuffle {
		rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return &Session{
		chatID:      chatID,
		mode:        mode,
		bank:        bank,
		order:       order,
		cfg:         cfg,
		sched:       sched,
		now:         now,
		rnd:         rnd,
		onTerminal:  onTerminal,
		phase:       PhaseIdle,
		roster:      NewRoster(cfg.TeamA, cfg.TeamB),
		board:       NewScoreBoard(),
		teaserUsed:  make(map[string]int),
		subscribers: make(map[chan domain.Effect]struct{}),
	}
}

// ChatID identifies the chat this session runs in.
func (s *Session) ChatID() string { return s.chatID }

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// begin draws the first question. Called exactly once by the manager.
func (s *Session) begin() {
	s.mu.Lock()
	var notify bool
	if s.phase == PhaseIdle {
		notify = s.presentNextLocked()
	}
	s.mu.Unlock()
	s.notifyTerminal(notify)
}

// Answer applies a submission from a player. Submissions outside an open
// window are dropped without error; the window either resolved already or
// never opened, and neither is the player's fault.
func (s *Session) Answer(userID, name, text string, at time.Time) {
	s.mu.Lock()
	if s.phase != PhaseAwaitingAnswer || s.current == nil {
		s.mu.Unlock()
		return
	}
	s.roster.Observe(userID, name)
	key, display := s.identityLocked(userID, name)

	if _, spent := s.current.answered[key]; spent {
		s.emitLocked(domain.Effect{
			Type:   domain.EffectAlreadyAnswered,
			ChatID: s.chatID,
			Notice: &domain.NoticeView{Participant: display},
		})
		s.mu.Unlock()
		return
	}

	if at.IsZero() {
		at = s.now()
	}
	elapsed := at.Sub(s.current.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	var notify bool
	if Judge(s.current.q, text) {
		s.cancelQuestionTimersLocked()
		points := s.cfg.Scoring.Score(s.current.base, elapsed, s.current.limit, s.current.revealed)
		s.board.Record(key, display, points, true, elapsed, at)
		s.phase = PhaseResolved
		s.emitLocked(domain.Effect{
			Type:   domain.EffectResult,
			ChatID: s.chatID,
			Result: &domain.ResultView{
				Correct:        true,
				Scorer:         display,
				Points:         points,
				ElapsedSeconds: elapsed.Seconds(),
				CorrectAnswer:  s.current.q.Answer,
			},
		})
		notify = s.scheduleAdvanceLocked()
	} else {
		s.current.answered[key] = struct{}{}
		s.board.Record(key, display, 0, false, 0, at)
		s.emitLocked(domain.Effect{
			Type:   domain.EffectResult,
			ChatID: s.chatID,
			Result: &domain.ResultView{Correct: false, Scorer: display},
		})
	}
	s.mu.Unlock()
	s.notifyTerminal(notify)
}

// Skip resolves the current question as if its window had expired.
func (s *Session) Skip() {
	s.mu.Lock()
	var notify bool
	if s.phase == PhaseAwaitingAnswer {
		s.cancelQuestionTimersLocked()
		notify = s.expireLocked()
	}
	s.mu.Unlock()
	s.notifyTerminal(notify)
}

// Stop tears the session down from any non-terminal phase. Every armed timer
// is canceled inside the same transition, so nothing fires afterwards.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.phase == PhaseComplete || s.phase == PhaseStopped {
		s.mu.Unlock()
		return
	}
	s.cancelQuestionTimersLocked()
	s.sched.Cancel(s.tokenLocked(TimerAdvance))
	s.generation++ // anything still in flight is now stale
	s.phase = PhaseStopped
	s.emitLocked(domain.Effect{
		Type:     domain.EffectSnapshot,
		ChatID:   s.chatID,
		Snapshot: s.snapshotLocked(true),
	})
	s.mu.Unlock()
	s.notifyTerminal(true)
}

// HandleTimer receives scheduler firings. A token whose generation no longer
// matches belongs to a question that already resolved and is dropped.
func (s *Session) HandleTimer(token TimerToken) {
	s.mu.Lock()
	if token.Generation != s.generation {
		s.mu.Unlock()
		return
	}
	var notify bool
	switch token.Kind {
	case TimerHint:
		s.revealHintLocked()
	case TimerWindow:
		if s.phase == PhaseAwaitingAnswer {
			s.sched.Cancel(s.tokenLocked(TimerHint))
			notify = s.expireLocked()
		}
	case TimerAdvance:
		if s.phase == PhaseResolved {
			notify = s.presentNextLocked()
		}
	}
	s.mu.Unlock()
	s.notifyTerminal(notify)
}

// Subscribe registers an effect consumer. Late subscribers are caught up on
// the question currently on the table. The cancel func must be called to
// release the channel.
func (s *Session) Subscribe() (<-chan domain.Effect, func()) {
	ch := make(chan domain.Effect, 32)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	if s.phase == PhaseAwaitingAnswer && s.current != nil {
		ch <- s.questionEffectLocked()
		for i := 0; i < s.current.revealed; i++ {
			ch <- s.hintEffectLocked(i)
		}
	}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Scores returns the current scoreboard without ending the session.
func (s *Session) Scores() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.snapshotLocked(false)
}

// CurrentHint returns the private teaser for the active question. Each
// player gets one per question and teaserAllowance per session.
func (s *Session) CurrentHint(userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAwaitingAnswer || s.current == nil {
		return "", domain.ErrNoQuestion
	}
	if _, taken := s.current.teaserTaken[userID]; taken {
		return "", domain.ErrHintTaken
	}
	if s.teaserUsed[userID] >= teaserAllowance {
		return "", domain.ErrHintQuota
	}
	s.current.teaserTaken[userID] = struct{}{}
	s.teaserUsed[userID]++
	return Teaser(s.current.q), nil
}

// SplitTeams reshuffles the known players into two teams.
func (s *Session) SplitTeams() (map[string][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Split(s.rnd)
}

// Teams returns the current team assignment.
func (s *Session) Teams() (map[string][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Teams()
}

// --- locked internals ---

// presentNextLocked draws the next question, arms its timers and opens the
// window. Returns true when the bank ran out and the session completed.
func (s *Session) presentNextLocked() bool {
	if s.cursor >= len(s.order) {
		return s.completeLocked()
	}
	q := s.bank.Questions[s.order[s.cursor]]
	s.cursor++
	s.generation++

	limit := s.cfg.Window
	if q.LimitSeconds > 0 {
		limit = time.Duration(q.LimitSeconds) * time.Second
	}
	base := s.cfg.BasePoints
	if q.Points > 0 {
		base = q.Points
	}
	plan := buildHintPlan(q, s.rnd)
	interval := limit / time.Duration(plan.count()+1)

	s.current = &activeQuestion{
		q:           q,
		number:      s.cursor,
		startedAt:   s.now(),
		limit:       limit,
		base:        base,
		hints:       plan,
		interval:    interval,
		answered:    make(map[string]struct{}),
		teaserTaken: make(map[string]struct{}),
	}
	s.phase = PhaseAwaitingAnswer

	if plan.count() > 0 {
		s.sched.Arm(s.tokenLocked(TimerHint), interval, s.HandleTimer)
	}
	s.sched.Arm(s.tokenLocked(TimerWindow), limit, s.HandleTimer)

	s.emitLocked(s.questionEffectLocked())
	return false
}

// revealHintLocked shows the next hint and re-arms the hint timer while more
// remain. Once hints run out only the window timer stays live.
func (s *Session) revealHintLocked() {
	if s.phase != PhaseAwaitingAnswer || s.current == nil {
		return
	}
	if s.current.revealed >= s.current.hints.count() {
		return
	}
	idx := s.current.revealed
	s.current.revealed++
	s.emitLocked(s.hintEffectLocked(idx))
	if s.current.revealed < s.current.hints.count() {
		s.sched.Arm(s.tokenLocked(TimerHint), s.current.interval, s.HandleTimer)
	}
}

// expireLocked resolves the question with no scorer and reveals the answer.
func (s *Session) expireLocked() bool {
	s.phase = PhaseResolved
	s.emitLocked(domain.Effect{
		Type:   domain.EffectResult,
		ChatID: s.chatID,
		Result: &domain.ResultView{Correct: false, CorrectAnswer: s.current.q.Answer},
	})
	return s.scheduleAdvanceLocked()
}

// scheduleAdvanceLocked moves on to the next question, either immediately or
// after the configured breather.
func (s *Session) scheduleAdvanceLocked() bool {
	if s.cfg.AdvanceDelay <= 0 {
		return s.presentNextLocked()
	}
	s.sched.Arm(s.tokenLocked(TimerAdvance), s.cfg.AdvanceDelay, s.HandleTimer)
	return false
}

func (s *Session) completeLocked() bool {
	s.phase = PhaseComplete
	s.current = nil
	s.emitLocked(domain.Effect{
		Type:     domain.EffectSnapshot,
		ChatID:   s.chatID,
		Snapshot: s.snapshotLocked(false),
	})
	return true
}

func (s *Session) cancelQuestionTimersLocked() {
	s.sched.Cancel(s.tokenLocked(TimerHint))
	s.sched.Cancel(s.tokenLocked(TimerWindow))
}

func (s *Session) tokenLocked(kind TimerKind) TimerToken {
	return TimerToken{Chat: s.chatID, Generation: s.generation, Kind: kind}
}

// identityLocked maps a player to the participant that scores: themselves in
// solo mode, their team in team mode. Players not yet assigned to a team
// score individually until a split places them.
func (s *Session) identityLocked(userID, name string) (key, display string) {
	if s.mode == domain.ModeTeam {
		if team, ok := s.roster.TeamOf(userID); ok {
			return "team:" + team, "Team " + team
		}
	}
	return userID, name
}

func (s *Session) questionEffectLocked() domain.Effect {
	return domain.Effect{
		Type:   domain.EffectQuestion,
		ChatID: s.chatID,
		Question: &domain.QuestionView{
			Number: s.current.number,
			Total:  len(s.order),
			Prompt: s.current.q.Prompt,
			Media:  s.current.q.Media,
		},
	}
}

func (s *Session) hintEffectLocked(idx int) domain.Effect {
	return domain.Effect{
		Type:   domain.EffectHint,
		ChatID: s.chatID,
		Hint:   &domain.HintView{Number: idx + 1, Text: s.current.hints.step(idx)},
	}
}

func (s *Session) snapshotLocked(stoppedEarly bool) *domain.Snapshot {
	snap := &domain.Snapshot{
		ChatID:       s.chatID,
		Standings:    s.board.Standings(),
		StoppedEarly: stoppedEarly,
	}
	if totals := s.teamTotalsLocked(snap.Standings); len(totals) > 0 {
		snap.TeamTotals = totals
	}
	return snap
}

// teamTotalsLocked aggregates per-team points. In team mode the board rows
// are the teams themselves; in solo mode with a split, individual scores are
// summed by membership.
func (s *Session) teamTotalsLocked(standings []domain.Standing) map[string]int {
	if s.mode == domain.ModeTeam {
		totals := make(map[string]int)
		for _, st := range standings {
			if team, ok := strings.CutPrefix(st.ParticipantID, "team:"); ok {
				totals[team] = st.Score
			}
		}
		return totals
	}
	if len(s.roster.assignment) == 0 {
		return nil
	}
	totals := make(map[string]int)
	for _, st := range standings {
		if team, ok := s.roster.TeamOf(st.ParticipantID); ok {
			totals[team] += st.Score
		}
	}
	return totals
}

// emitLocked fans an effect out to subscribers without ever blocking the
// state machine. A consumer that cannot keep up loses effects; delivery is
// the transport's problem, not the engine's.
func (s *Session) emitLocked(eff domain.Effect) {
	for ch := range s.subscribers {
		select {
		case ch <- eff:
		default:
		}
	}
}

func (s *Session) notifyTerminal(terminal bool) {
	if terminal && s.onTerminal != nil {
		s.onTerminal()
	}
}

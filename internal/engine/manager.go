package engine

import (
	"context"
	"log"
	"math/rand"
	"time"

	"chat-quiz-engine/internal/domain"
)

// SessionStore abstracts how live sessions are registered (in-memory, with a
// Redis liveness marker, etc). Put must be put-if-absent: a second session
// for the same chat is a caller error, never a silent replacement.
type SessionStore interface {
	Put(chatID string, s *Session) error
	Get(chatID string) (*Session, bool)
	Delete(chatID string)
}

// BankRepository loads question banks (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// Manager routes inbound chat events to the right session and owns the
// one-live-session-per-chat invariant. Sessions remove themselves from the
// store when they reach a terminal phase, taking their timers with them.
type Manager struct {
	store SessionStore
	banks BankRepository
	sched Scheduler
	cfg   Config
	now   func() time.Time
	seed  func() int64
}

func NewManager(store SessionStore, banks BankRepository, sched Scheduler, cfg Config) *Manager {
	return &Manager{
		store: store,
		banks: banks,
		sched: sched,
		cfg:   cfg,
		now:   time.Now,
		seed:  func() int64 { return time.Now().UnixNano() },
	}
}

// NewManagerWithClock is test-only for deterministic timestamps and shuffles.
func NewManagerWithClock(store SessionStore, banks BankRepository, sched Scheduler, cfg Config, now func() time.Time, seed int64) *Manager {
	m := NewManager(store, banks, sched, cfg)
	m.now = now
	m.seed = func() int64 { return seed }
	return m
}

// Start creates the session for a chat and presents the first question.
func (m *Manager) Start(ctx context.Context, chatID string, mode domain.Mode, bankID string) error {
	bank, err := m.banks.GetBank(ctx, bankID)
	if err != nil {
		return err
	}
	if len(bank.Questions) == 0 {
		return domain.ErrBankExhausted
	}
	if mode != domain.ModeTeam {
		mode = domain.ModeSolo
	}

	session := newSession(chatID, mode, bank, m.cfg, m.sched, m.now,
		rand.New(rand.NewSource(m.seed())),
		func() { m.store.Delete(chatID) },
	)
	if err := m.store.Put(chatID, session); err != nil {
		return err
	}
	log.Printf("quiz started in chat %s (mode=%s bank=%s questions=%d)", chatID, mode, bankID, len(bank.Questions))
	session.begin()
	return nil
}

// Answer routes a submission to the chat's session.
func (m *Manager) Answer(chatID, userID, name, text string, at time.Time) error {
	session, ok := m.store.Get(chatID)
	if !ok {
		return domain.ErrUnknownSession
	}
	session.Answer(userID, name, text, at)
	return nil
}

// Skip resolves the current question without waiting for the window.
func (m *Manager) Skip(chatID string) error {
	session, ok := m.store.Get(chatID)
	if !ok {
		return domain.ErrUnknownSession
	}
	session.Skip()
	return nil
}

// Stop tears the chat's session down and emits the final snapshot.
func (m *Manager) Stop(chatID string) error {
	session, ok := m.store.Get(chatID)
	if !ok {
		return domain.ErrUnknownSession
	}
	session.Stop()
	log.Printf("quiz stopped in chat %s", chatID)
	return nil
}

// Subscribe attaches an effect consumer to the chat's session. The caller
// must invoke the returned cancel function to avoid leaks.
func (m *Manager) Subscribe(chatID string) (<-chan domain.Effect, func(), error) {
	session, ok := m.store.Get(chatID)
	if !ok {
		return nil, nil, domain.ErrUnknownSession
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Scores returns the chat's current scoreboard.
func (m *Manager) Scores(chatID string) (domain.Snapshot, error) {
	session, ok := m.store.Get(chatID)
	if !ok {
		return domain.Snapshot{}, domain.ErrUnknownSession
	}
	return session.Scores(), nil
}

// CurrentHint returns the private teaser for the chat's active question,
// charged against the asking player's allowance.
func (m *Manager) CurrentHint(chatID, userID string) (string, error) {
	session, ok := m.store.Get(chatID)
	if !ok {
		return "", domain.ErrUnknownSession
	}
	return session.CurrentHint(userID)
}

// SplitTeams shuffles the chat's known players into two teams.
func (m *Manager) SplitTeams(chatID string) (map[string][]string, error) {
	session, ok := m.store.Get(chatID)
	if !ok {
		return nil, domain.ErrUnknownSession
	}
	return session.SplitTeams()
}

// Teams returns the chat's current team assignment.
func (m *Manager) Teams(chatID string) (map[string][]string, error) {
	session, ok := m.store.Get(chatID)
	if !ok {
		return nil, domain.ErrUnknownSession
	}
	return session.Teams()
}

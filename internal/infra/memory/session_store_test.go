package memory_test

import (
	"errors"
	"testing"

	"chat-quiz-engine/internal/domain"
	"chat-quiz-engine/internal/engine"
	"chat-quiz-engine/internal/infra/memory"
)

func TestSessionStorePutGetDelete(t *testing.T) {
	store := memory.NewSessionStore()

	if _, ok := store.Get("chat-1"); ok {
		t.Fatalf("expected empty store")
	}

	session := &engine.Session{}
	if err := store.Put("chat-1", session); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok := store.Get("chat-1")
	if !ok || got != session {
		t.Fatalf("expected the stored session back")
	}
	if store.Len() != 1 {
		t.Fatalf("expected one session, got %d", store.Len())
	}

	store.Delete("chat-1")
	if _, ok := store.Get("chat-1"); ok {
		t.Fatalf("expected session gone after delete")
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store after delete")
	}
}

func TestSessionStoreRejectsDuplicate(t *testing.T) {
	store := memory.NewSessionStore()

	first := &engine.Session{}
	if err := store.Put("chat-1", first); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put("chat-1", &engine.Session{}); !errors.Is(err, domain.ErrQuizRunning) {
		t.Fatalf("expected ErrQuizRunning, got %v", err)
	}
	// The original session survives the rejected put.
	got, _ := store.Get("chat-1")
	if got != first {
		t.Fatalf("duplicate put must not replace the live session")
	}

	store.Delete("chat-1")
	if err := store.Put("chat-1", &engine.Session{}); err != nil {
		t.Fatalf("put after delete: %v", err)
	}
}

func TestSessionStoreDeleteUnknownIsNoop(t *testing.T) {
	store := memory.NewSessionStore()
	store.Delete("ghost")
	if store.Len() != 0 {
		t.Fatalf("expected empty store")
	}
}

package memory

import (
	"testing"

	"ielts-practice-engine/internal/app"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	first := app.NewSession("u1", "quiz-1")
	if replaced := store.Put(first); replaced != nil {
		t.Fatalf("expected no previous session, got %+v", replaced)
	}
	if got, ok := store.Get("u1"); !ok || got != first {
		t.Fatalf("expected session present")
	}

	second := app.NewSession("u1", "quiz-2")
	if replaced := store.Put(second); replaced != first {
		t.Fatalf("expected first session to be replaced")
	}
	if store.Len() != 1 {
		t.Fatalf("expected one session per user, got %d", store.Len())
	}

	store.Delete("u1")
	if _, ok := store.Get("u1"); ok {
		t.Fatalf("expected session removed")
	}
}

package identity

import (
	"testing"

	"github.com/CartPulse/cartpulse-go/tracker/storage"
)

func TestLoadVisitorIDMintsAndPersists(t *testing.T) {
	store := storage.NewMemoryStore()

	first := LoadVisitorID(store)
	if first == "" {
		t.Fatal("expected a minted visitor id")
	}

	second := LoadVisitorID(store)
	if second != first {
		t.Errorf("visitor id changed across loads: %q then %q", first, second)
	}

	if persisted, ok := store.Get(storage.VisitorIDKey); !ok || persisted != first {
		t.Errorf("persisted id = %q, %v, want %q", persisted, ok, first)
	}
}

func TestLoadVisitorIDReusesExisting(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Set(storage.VisitorIDKey, "existing-id")

	if got := LoadVisitorID(store); got != "existing-id" {
		t.Errorf("LoadVisitorID = %q, want existing-id", got)
	}
}

func TestNewSessionIDUnique(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	if a == "" || a == b {
		t.Errorf("session ids must be unique and non-empty: %q, %q", a, b)
	}
}

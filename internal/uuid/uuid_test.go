// Package uuid tests for identifier generation.
package uuid

import (
	"testing"

	guuid "github.com/google/uuid"
)

// TestNew verifies generated identifiers are parseable v4 UUIDs. Queue
// operation ids and remote idempotency keys are built from these
// strings, so the format has to hold.
func TestNew(t *testing.T) {
	id := New()
	if id == "" {
		t.Fatal("Expected non-empty identifier")
	}

	parsed, err := guuid.Parse(id)
	if err != nil {
		t.Fatalf("New() produced unparseable id %q: %v", id, err)
	}
	if parsed.Version() != 4 {
		t.Errorf("Expected v4 identifier, got v%d", parsed.Version())
	}
	if parsed.String() != id {
		t.Errorf("Expected canonical form, got %q", id)
	}
}

// TestNewUniqueness verifies ids do not collide across a device session
// worth of entity creates.
func TestNewUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("Duplicate identifier generated: %s", id)
		}
		seen[id] = true
	}
}

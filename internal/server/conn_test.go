package server

import "testing"

func TestRegistryAttachDetach(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Username(1); ok {
		t.Error("Username() on empty registry reported a session")
	}

	r.Attach(1, "alice")

	username, ok := r.Username(1)
	if !ok || username != "alice" {
		t.Errorf("Username(1) = (%q, %v), want (alice, true)", username, ok)
	}

	// Attach overwrites any prior mapping for the connection.
	r.Attach(1, "bob")
	username, _ = r.Username(1)
	if username != "bob" {
		t.Errorf("Username(1) after overwrite = %q, want bob", username)
	}

	r.Detach(1)
	if _, ok := r.Username(1); ok {
		t.Error("Username(1) after Detach reported a session")
	}

	// Detaching an absent connection is a no-op, not an error.
	r.Detach(42)

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistryConcurrentLoginsPermitted(t *testing.T) {
	r := NewRegistry()

	// The same user may hold sessions on two connections at once.
	r.Attach(1, "alice")
	r.Attach(2, "alice")

	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}

	r.Detach(1)

	username, ok := r.Username(2)
	if !ok || username != "alice" {
		t.Errorf("Username(2) = (%q, %v), want (alice, true)", username, ok)
	}
}

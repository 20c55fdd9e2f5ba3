package auth

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// TestSessionID_HighEntropy tests that session IDs have high entropy.
func TestSessionID_HighEntropy(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		id1, err := generateSessionID()
		if err != nil {
			t.Fatalf("first generateSessionID failed: %v", err)
		}

		id2, err := generateSessionID()
		if err != nil {
			t.Fatalf("second generateSessionID failed: %v", err)
		}

		// Session IDs should never collide
		if id1 == id2 {
			t.Fatalf("session IDs collided: %s", id1)
		}

		// 32 bytes in unpadded URL base64 is 43 characters
		if len(id1) != 43 {
			t.Fatalf("session ID too short: %d chars", len(id1))
		}
	})
}

// TestSessionID_CookieSafe tests that session IDs need no cookie escaping.
func TestSessionID_CookieSafe(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		id, err := generateSessionID()
		if err != nil {
			t.Fatalf("generateSessionID failed: %v", err)
		}

		if strings.ContainsAny(id, "+/=") {
			t.Fatalf("session ID %q is not cookie-safe", id)
		}
	})
}

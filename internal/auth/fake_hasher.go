package auth

import "strings"

// FakeInsecureHasher implements PasswordHasher with zero crypto overhead.
// Stores passwords as "$fake$<plaintext>" and verifies by string comparison.
// Tests only: bcrypt at default cost dominates storefront test time.
type FakeInsecureHasher struct{}

func (FakeInsecureHasher) HashPassword(password string) (string, error) {
	return "$fake$" + password, nil
}

func (FakeInsecureHasher) VerifyPassword(password, encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$fake$") && strings.TrimPrefix(encodedHash, "$fake$") == password
}

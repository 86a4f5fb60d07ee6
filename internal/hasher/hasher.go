// Package hasher wraps bcrypt to create and check password digests.
package hasher

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/tinylink-dev/tinylink/internal/models"
)

// Hasher produces and verifies salted one-way password digests.
// The salt is generated per call, so hashing the same plaintext twice
// yields different digests.
type Hasher struct {
	cost int
}

// New creates a Hasher with the given bcrypt cost. A cost outside the
// bcrypt-supported range falls back to bcrypt.DefaultCost.
func New(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt digest of plaintext. Empty plaintext is rejected.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", models.ErrValidation
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("in internal/hasher/hasher.go/Hash(): error while `bcrypt.GenerateFromPassword()` calling: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. The bcrypt comparison
// runs in constant time relative to the digest length. Malformed or empty
// input yields false, never an error or a panic.
func (h *Hasher) Verify(plaintext, digest string) bool {
	if plaintext == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// Package user defines the user model shared by the identity directory,
// the authentication middleware and the URL record store.
package user

import "time"

// User represents a registered account.
//
// Users are immutable after creation: there is no update or delete path,
// so a UserID stored on a URL record always refers to a user that existed
// at some point during the process lifetime.
type User struct {
	// ID is the unique identifier of the user, meaning a UUID.
	ID string

	// Email is the unique login identifier. Matching is exact and
	// case-sensitive.
	Email string

	// PasswordHash is the bcrypt digest of the user's password.
	// The plaintext is never stored.
	PasswordHash string

	// RegisteredAt is the creation time of the account.
	RegisteredAt time.Time
}

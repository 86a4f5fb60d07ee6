// Package users implements the in-memory identity directory: registration,
// email lookup and credential verification.
package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinylink-dev/tinylink/internal/models"
	"github.com/tinylink-dev/tinylink/internal/user"
)

type passwordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// Directory is the in-memory user registry. All state lives for the
// process lifetime; a restart discards it.
//
// HTTP handlers run on separate goroutines, so access is guarded by an
// RWMutex even though individual operations are short.
type Directory struct {
	mu      sync.RWMutex
	byID    map[string]*user.User
	byEmail map[string]*user.User
	hasher  passwordHasher
	nowFunc func() time.Time
}

// New creates an empty Directory backed by the given password hasher.
func New(hasher passwordHasher) *Directory {
	return &Directory{
		byID:    map[string]*user.User{},
		byEmail: map[string]*user.User{},
		hasher:  hasher,
		nowFunc: time.Now,
	}
}

// FindByEmail returns the user registered with the given email.
// Matching is exact and case-sensitive.
func (d *Directory) FindByEmail(ctx context.Context, email string) (*user.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	usr, found := d.byEmail[email]
	if !found {
		return nil, false
	}
	clone := *usr
	return &clone, true
}

// GetByID returns the user with the given ID.
func (d *Directory) GetByID(ctx context.Context, userID string) (*user.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	usr, found := d.byID[userID]
	if !found {
		return nil, false
	}
	clone := *usr
	return &clone, true
}

// Create registers a new user. It fails with models.ErrValidation when
// email or password is empty and with models.ErrDuplicateEmail when the
// email is already registered.
func (d *Directory) Create(ctx context.Context, email, password string) (*user.User, error) {
	if email == "" || password == "" {
		return nil, models.ErrValidation
	}

	passwordHash, err := d.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, taken := d.byEmail[email]; taken {
		return nil, models.ErrDuplicateEmail
	}

	usr := &user.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		RegisteredAt: d.nowFunc(),
	}
	d.byID[usr.ID] = usr
	d.byEmail[usr.Email] = usr

	clone := *usr
	return &clone, nil
}

// VerifyCredentials composes FindByEmail with the password check.
// It returns a single not-found result for both an unknown email and a
// wrong password; the caller must not be able to tell them apart here.
func (d *Directory) VerifyCredentials(ctx context.Context, email, password string) (*user.User, bool) {
	usr, found := d.FindByEmail(ctx, email)
	if !found {
		return nil, false
	}
	if !d.hasher.Verify(password, usr.PasswordHash) {
		return nil, false
	}
	return usr, true
}

// Count returns the number of registered users.
func (d *Directory) Count(ctx context.Context) int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return int64(len(d.byID))
}

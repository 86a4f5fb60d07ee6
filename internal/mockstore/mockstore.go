// Package mockstore provides testify-based mocks of the identity
// directory and the URL record store as consumed by the service layer.
// Use them to simulate storage behavior, in particular failure paths that
// the real in-memory implementations cannot be driven into easily.
package mockstore

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tinylink-dev/tinylink/internal/links"
	"github.com/tinylink-dev/tinylink/internal/user"
)

// LinkStoreMock mocks the record store used by the service.
type LinkStoreMock struct {
	mock.Mock
}

// Create mocks record creation.
func (m *LinkStoreMock) Create(ctx context.Context, ownerUserID, longURL string) (*links.Record, error) {
	args := m.Called(ctx, ownerUserID, longURL)
	record, _ := args.Get(0).(*links.Record)
	return record, args.Error(1)
}

// Get mocks a lookup by short code.
func (m *LinkStoreMock) Get(ctx context.Context, shortCode string) (*links.Record, error) {
	args := m.Called(ctx, shortCode)
	record, _ := args.Get(0).(*links.Record)
	return record, args.Error(1)
}

// Update mocks a long URL replacement.
func (m *LinkStoreMock) Update(ctx context.Context, shortCode, newLongURL, requestingUserID string) error {
	args := m.Called(ctx, shortCode, newLongURL, requestingUserID)
	return args.Error(0)
}

// Delete mocks a record removal.
func (m *LinkStoreMock) Delete(ctx context.Context, shortCode, requestingUserID string) error {
	args := m.Called(ctx, shortCode, requestingUserID)
	return args.Error(0)
}

// ListForOwner mocks the ownership-scoped listing.
func (m *LinkStoreMock) ListForOwner(ctx context.Context, ownerUserID string) []*links.Record {
	args := m.Called(ctx, ownerUserID)
	records, _ := args.Get(0).([]*links.Record)
	return records
}

// RecordVisit mocks visit accounting.
func (m *LinkStoreMock) RecordVisit(ctx context.Context, shortCode, visitorUserID string) error {
	args := m.Called(ctx, shortCode, visitorUserID)
	return args.Error(0)
}

// All mocks the full-store snapshot.
func (m *LinkStoreMock) All(ctx context.Context) map[string]*links.Record {
	args := m.Called(ctx)
	snapshot, _ := args.Get(0).(map[string]*links.Record)
	return snapshot
}

// Count mocks the record total.
func (m *LinkStoreMock) Count(ctx context.Context) int64 {
	args := m.Called(ctx)
	return args.Get(0).(int64)
}

// DirectoryMock mocks the identity directory used by the service.
type DirectoryMock struct {
	mock.Mock
}

// Create mocks user registration.
func (m *DirectoryMock) Create(ctx context.Context, email, password string) (*user.User, error) {
	args := m.Called(ctx, email, password)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

// VerifyCredentials mocks the combined email and password check.
func (m *DirectoryMock) VerifyCredentials(ctx context.Context, email, password string) (*user.User, bool) {
	args := m.Called(ctx, email, password)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1)
}

// GetByID mocks the ID lookup used by the authentication middleware.
func (m *DirectoryMock) GetByID(ctx context.Context, userID string) (*user.User, bool) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1)
}

// Count mocks the user total.
func (m *DirectoryMock) Count(ctx context.Context) int64 {
	args := m.Called(ctx)
	return args.Get(0).(int64)
}

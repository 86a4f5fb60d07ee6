// Package links implements the in-memory URL record store: short code to
// long URL mappings with per-record ownership and visit accounting.
package links

import (
	"context"
	"sync"
	"time"

	"github.com/tinylink-dev/tinylink/internal/models"
)

type codeGenerator interface {
	Generate() (string, error)
}

// Visit is a single entry of a record's visit log. An empty VisitorUserID
// marks an anonymous visitor.
type Visit struct {
	VisitorUserID string
	VisitedAt     time.Time
}

// Record is one stored short URL.
//
// OwnerUserID is fixed at creation. LongURL changes only through Update
// by the owner; VisitCount and VisitLog change only through RecordVisit.
type Record struct {
	ShortCode   string
	LongURL     string
	OwnerUserID string
	CreatedAt   time.Time
	VisitCount  int64
	VisitLog    []Visit
}

// Store is the in-memory record store keyed by short code.
//
// The store, not the generator, is responsible for short code uniqueness:
// Create retries on collision and fails once the retry budget is spent.
type Store struct {
	mu       sync.RWMutex
	records  map[string]*Record
	gen      codeGenerator
	maxTries int
	nowFunc  func() time.Time
}

// DefaultMaxTries bounds the collision retry loop in Create.
const DefaultMaxTries = 10

// New creates an empty Store using the given code generator.
// A non-positive maxTries falls back to DefaultMaxTries.
func New(gen codeGenerator, maxTries int) *Store {
	if maxTries <= 0 {
		maxTries = DefaultMaxTries
	}
	return &Store{
		records:  map[string]*Record{},
		gen:      gen,
		maxTries: maxTries,
		nowFunc:  time.Now,
	}
}

// Create stores a new record owned by ownerUserID. Code collisions are
// retried up to the configured budget; models.ErrCodespaceExhausted is
// returned when every generated code is already taken.
func (s *Store) Create(ctx context.Context, ownerUserID, longURL string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for try := 0; try < s.maxTries; try++ {
		code, err := s.gen.Generate()
		if err != nil {
			return nil, err
		}
		if _, taken := s.records[code]; taken {
			continue
		}

		record := &Record{
			ShortCode:   code,
			LongURL:     longURL,
			OwnerUserID: ownerUserID,
			CreatedAt:   s.nowFunc(),
		}
		s.records[code] = record

		return cloneRecord(record), nil
	}

	return nil, models.ErrCodespaceExhausted
}

// Get returns the record for the given short code or models.ErrNotFound.
func (s *Store) Get(ctx context.Context, shortCode string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, found := s.records[shortCode]
	if !found {
		return nil, models.ErrNotFound
	}

	return cloneRecord(record), nil
}

// Update replaces the long URL of an existing record. The existence check
// runs before the ownership check, so an unknown code reports
// models.ErrNotFound even to a non-owner.
func (s *Store) Update(ctx context.Context, shortCode, newLongURL, requestingUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, found := s.records[shortCode]
	if !found {
		return models.ErrNotFound
	}
	if record.OwnerUserID != requestingUserID {
		return models.ErrForbidden
	}

	record.LongURL = newLongURL

	return nil
}

// Delete removes a record. Same check order as Update.
func (s *Store) Delete(ctx context.Context, shortCode, requestingUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, found := s.records[shortCode]
	if !found {
		return models.ErrNotFound
	}
	if record.OwnerUserID != requestingUserID {
		return models.ErrForbidden
	}

	delete(s.records, shortCode)

	return nil
}

// ListForOwner returns every record owned by ownerUserID. Order is not
// significant.
func (s *Store) ListForOwner(ctx context.Context, ownerUserID string) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owned []*Record
	for _, record := range s.records {
		if record.OwnerUserID == ownerUserID {
			owned = append(owned, cloneRecord(record))
		}
	}

	return owned
}

// RecordVisit increments the visit counter of a record and appends a
// visit-log entry.
//
// Identified visitors are logged once per record: a repeat visit by the
// same user bumps the counter but not the log. Anonymous visits carry no
// identity to deduplicate on and are always appended.
func (s *Store) RecordVisit(ctx context.Context, shortCode, visitorUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, found := s.records[shortCode]
	if !found {
		return models.ErrNotFound
	}

	record.VisitCount++

	if visitorUserID != "" {
		for _, visit := range record.VisitLog {
			if visit.VisitorUserID == visitorUserID {
				return nil
			}
		}
	}

	record.VisitLog = append(record.VisitLog, Visit{
		VisitorUserID: visitorUserID,
		VisitedAt:     s.nowFunc(),
	})

	return nil
}

// All returns a snapshot of the full store keyed by short code.
func (s *Store) All(ctx context.Context) map[string]*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]*Record, len(s.records))
	for code, record := range s.records {
		snapshot[code] = cloneRecord(record)
	}

	return snapshot
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.records))
}

func cloneRecord(record *Record) *Record {
	clone := *record
	clone.VisitLog = append([]Visit(nil), record.VisitLog...)

	return &clone
}

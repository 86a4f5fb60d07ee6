// Package service contains the application logic tying the identity
// directory, the URL record store and the short URL formatting together.
// Handlers stay thin and delegate here.
package service

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/thoas/go-funk"

	"github.com/tinylink-dev/tinylink/internal/access"
	"github.com/tinylink-dev/tinylink/internal/links"
	"github.com/tinylink-dev/tinylink/internal/models"
	"github.com/tinylink-dev/tinylink/internal/user"
)

type identityDirectory interface {
	Create(ctx context.Context, email, password string) (*user.User, error)
	VerifyCredentials(ctx context.Context, email, password string) (*user.User, bool)
	Count(ctx context.Context) int64
}

type linkStore interface {
	Create(ctx context.Context, ownerUserID, longURL string) (*links.Record, error)
	Get(ctx context.Context, shortCode string) (*links.Record, error)
	Update(ctx context.Context, shortCode, newLongURL, requestingUserID string) error
	Delete(ctx context.Context, shortCode, requestingUserID string) error
	ListForOwner(ctx context.Context, ownerUserID string) []*links.Record
	RecordVisit(ctx context.Context, shortCode, visitorUserID string) error
	All(ctx context.Context) map[string]*links.Record
	Count(ctx context.Context) int64
}

var urlPattern = regexp.MustCompile(`\bhttps?://\S+\b`)

// Service implements registration, login and the CRUD operations on
// short URL records, including the authorization sequence.
type Service struct {
	users        identityDirectory
	links        linkStore
	shortURLBase string
}

// New creates a Service.
func New(users identityDirectory, links linkStore, shortURLBase string) *Service {
	return &Service{
		users:        users,
		links:        links,
		shortURLBase: shortURLBase,
	}
}

// Register creates a new account.
func (s *Service) Register(ctx context.Context, email, password string) (*user.User, error) {
	return s.users.Create(ctx, email, password)
}

// Login verifies the credentials and returns the matching user or
// models.ErrBadCredentials. Unknown email and wrong password are not
// distinguished.
func (s *Service) Login(ctx context.Context, email, password string) (*user.User, error) {
	usr, found := s.users.VerifyCredentials(ctx, email, password)
	if !found {
		return nil, models.ErrBadCredentials
	}
	return usr, nil
}

// Shorten creates a new short URL record owned by userID.
func (s *Service) Shorten(ctx context.Context, userID, urlToShort string) (*models.URLRecordResponse, error) {
	if userID == "" {
		return nil, models.ErrUnauthorized
	}

	longURL, err := s.ExtractFirstURL(urlToShort)
	if err != nil {
		return nil, err
	}

	record, err := s.links.Create(ctx, userID, longURL)
	if err != nil {
		return nil, err
	}

	response := s.toRecordResponse(record)
	return &response, nil
}

// GetRecord returns a single record after the full authorization
// sequence: existence, authentication, ownership.
func (s *Service) GetRecord(ctx context.Context, userID, shortCode string) (*models.URLRecordResponse, error) {
	record, err := s.links.Get(ctx, shortCode)
	if err := access.Check(userID, record, err); err != nil {
		return nil, err
	}

	response := s.toRecordResponse(record)
	return &response, nil
}

// UpdateURL replaces the long URL of a record owned by userID.
func (s *Service) UpdateURL(ctx context.Context, userID, shortCode, urlToShort string) error {
	record, err := s.links.Get(ctx, shortCode)
	if err := access.Check(userID, record, err); err != nil {
		return err
	}

	longURL, err := s.ExtractFirstURL(urlToShort)
	if err != nil {
		return err
	}

	return s.links.Update(ctx, shortCode, longURL, userID)
}

// DeleteURL removes a record owned by userID.
func (s *Service) DeleteURL(ctx context.Context, userID, shortCode string) error {
	record, err := s.links.Get(ctx, shortCode)
	if err := access.Check(userID, record, err); err != nil {
		return err
	}

	return s.links.Delete(ctx, shortCode, userID)
}

// ListUserURLs returns every record owned by userID.
func (s *Service) ListUserURLs(ctx context.Context, userID string) (models.UserURLs, error) {
	if userID == "" {
		return nil, models.ErrUnauthorized
	}

	owned := s.links.ListForOwner(ctx, userID)
	listing := funk.Map(owned, func(record *links.Record) models.URLRecordResponse {
		return s.toRecordResponse(record)
	}).([]models.URLRecordResponse)

	return models.UserURLs(listing), nil
}

// Resolve returns the redirect target for a short code and records the
// visit. visitorUserID may be empty for anonymous visitors.
func (s *Service) Resolve(ctx context.Context, shortCode, visitorUserID string) (string, error) {
	record, err := s.links.Get(ctx, shortCode)
	if err != nil {
		return "", err
	}

	if err := s.links.RecordVisit(ctx, shortCode, visitorUserID); err != nil {
		return "", err
	}

	return record.LongURL, nil
}

// DumpAll returns the full store keyed by short code.
func (s *Service) DumpAll(ctx context.Context) map[string]models.URLRecordResponse {
	snapshot := s.links.All(ctx)

	dump := make(map[string]models.URLRecordResponse, len(snapshot))
	for code, record := range snapshot {
		dump[code] = s.toRecordResponse(record)
	}

	return dump
}

// InternalStats returns record and user totals.
func (s *Service) InternalStats(ctx context.Context) models.InternalStatsResponse {
	return models.InternalStatsResponse{
		URLs:  s.links.Count(ctx),
		Users: s.users.Count(ctx),
	}
}

// ShortURL formats the public short URL for a code.
func (s *Service) ShortURL(shortCode string) string {
	return strings.TrimRight(s.shortURLBase, "/") + "/u/" + shortCode
}

// ExtractFirstURL pulls the first http(s) URL out of free-form input and
// validates it. Returns models.ErrValidation when none is found.
func (s *Service) ExtractFirstURL(urlToShort string) (string, error) {
	match := urlPattern.FindString(urlToShort)
	if match == "" {
		return "", models.ErrValidation
	}

	if !isValidURL(match) {
		return "", models.ErrValidation
	}

	return match, nil
}

func (s *Service) toRecordResponse(record *links.Record) models.URLRecordResponse {
	visitLog := funk.Map(record.VisitLog, func(visit links.Visit) models.VisitEntry {
		return models.VisitEntry{
			VisitorUserID: visit.VisitorUserID,
			VisitedAt:     visit.VisitedAt.Format(time.RFC3339),
		}
	}).([]models.VisitEntry)
	if len(visitLog) == 0 {
		visitLog = nil
	}

	return models.URLRecordResponse{
		ShortCode:   record.ShortCode,
		ShortURL:    s.ShortURL(record.ShortCode),
		OriginalURL: record.LongURL,
		OwnerUserID: record.OwnerUserID,
		CreatedAt:   record.CreatedAt.Format(time.RFC3339),
		VisitCount:  record.VisitCount,
		VisitLog:    visitLog,
	}
}

func isValidURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil &&
		(u.Scheme == "http" || u.Scheme == "https") &&
		u.Host != ""
}

// Package models holds the wire-level request/response types and the
// shared error taxonomy used across the service, router and storage layers.
package models

import "errors"

// Sentinel errors shared across layers. Handlers translate them to HTTP
// status codes at the boundary; nothing below the router inspects statuses.
var (
	ErrValidation         = errors.New("invalid input")
	ErrDuplicateEmail     = errors.New("email is already registered")
	ErrBadCredentials     = errors.New("invalid email or password")
	ErrNotFound           = errors.New("short code not found")
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("you do not own this short URL")
	ErrCodespaceExhausted = errors.New("could not generate a unique short code")
)

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// UserResponse is returned after a successful registration or login.
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ShortenRequest is the body of POST /urls. The url field is free-form
// text; the service extracts the first http(s) URL out of it.
type ShortenRequest struct {
	URL string `json:"url" validate:"required"`
}

// UpdateURLRequest is the body of PUT/PATCH /urls/{id}. Same free-form
// url field as ShortenRequest.
type UpdateURLRequest struct {
	URL string `json:"url" validate:"required"`
}

// VisitEntry is one row of a record's visit log. An empty VisitorUserID
// marks an anonymous visit.
type VisitEntry struct {
	VisitorUserID string `json:"visitor_user_id,omitempty"`
	VisitedAt     string `json:"visited_at"`
}

// URLRecordResponse is the JSON projection of a stored short URL.
type URLRecordResponse struct {
	ShortCode   string       `json:"short_code"`
	ShortURL    string       `json:"short_url"`
	OriginalURL string       `json:"original_url"`
	OwnerUserID string       `json:"owner_user_id"`
	CreatedAt   string       `json:"created_at"`
	VisitCount  int64        `json:"visit_count"`
	VisitLog    []VisitEntry `json:"visit_log,omitempty"`
}

// UserURLs is the listing returned by GET /urls.
type UserURLs []URLRecordResponse

// InternalStatsResponse is returned by GET /api/internal/stats.
type InternalStatsResponse struct {
	URLs  int64 `json:"urls"`
	Users int64 `json:"users"`
}

// Package access implements the authorization check applied to every
// ownership-sensitive operation on a URL record.
package access

import (
	"github.com/tinylink-dev/tinylink/internal/links"
	"github.com/tinylink-dev/tinylink/internal/models"
)

// Check evaluates the fixed authorization sequence for a record lookup,
// short-circuiting on the first failing step:
//
//  1. resource existence (lookupErr from the store) -> models.ErrNotFound
//  2. authentication (empty currentUserID)          -> models.ErrUnauthorized
//  3. ownership                                     -> models.ErrForbidden
//
// A nil return means the caller may proceed with the operation.
func Check(currentUserID string, record *links.Record, lookupErr error) error {
	if lookupErr != nil {
		return lookupErr
	}
	if currentUserID == "" {
		return models.ErrUnauthorized
	}
	if record.OwnerUserID != currentUserID {
		return models.ErrForbidden
	}

	return nil
}

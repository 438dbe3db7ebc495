// Package core holds the error taxonomy and the external collaborator
// contracts shared by the registry, license, and marketplace services.
package core

import (
	"errors"
	"fmt"

	"github.com/blockassets/marketplace/pkg/clarity"
)

// Standard errors. Every rejected precondition surfaces exactly one of these
// kinds so callers can branch without string matching.
var (
	ErrNotAuthorized      = errors.New("not authorized")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrAssetNotFound      = errors.New("asset not found")
	ErrAssetAlreadyExists = errors.New("asset already exists")
	ErrAssetDisabled      = errors.New("asset disabled")
	ErrInvalidPrice       = errors.New("price must be positive")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrInvalidDuration    = errors.New("duration must be positive")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrLicenseAlreadyExists = errors.New("license already exists")
	ErrLicenseNotFound      = errors.New("license not found")
	ErrLicenseRevoked       = errors.New("license revoked")
	ErrAlreadyApproved      = errors.New("request already approved")
	ErrNoQuantity           = errors.New("no quantity remaining")
)

// NotFoundError reports a missing record and wraps the sentinel matching the
// record kind, so errors.Is works against the taxonomy.
type NotFoundError struct {
	Resource string
	ID       uint64
	kind     error
}

// NewNotFoundError builds a NotFoundError wrapping kind, which must be one of
// ErrAssetNotFound or ErrLicenseNotFound.
func NewNotFoundError(resource string, id uint64, kind error) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id, kind: kind}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.kind }

// OwnershipError reports a caller acting on a resource it does not own.
type OwnershipError struct {
	Resource  string
	ID        uint64
	Principal clarity.Principal
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("%s %d does not belong to principal %s", e.Resource, e.ID, e.Principal)
}

func (e *OwnershipError) Unwrap() error { return ErrNotAuthorized }

// EnsureOwnership returns an OwnershipError unless caller is the owner.
func EnsureOwnership(owner, caller clarity.Principal, resource string, id uint64) error {
	if owner.IsZero() || owner != caller {
		return &OwnershipError{Resource: resource, ID: id, Principal: caller}
	}
	return nil
}

// IsNotFound reports whether err is a missing-record failure of either kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAssetNotFound) || errors.Is(err, ErrLicenseNotFound)
}

// IsNotAuthorized reports whether err is an authorization failure.
func IsNotAuthorized(err error) bool {
	return errors.Is(err, ErrNotAuthorized)
}

// IsOwnershipError reports whether err carries ownership details.
func IsOwnershipError(err error) bool {
	var oe *OwnershipError
	return errors.As(err, &oe)
}

// IsConflict reports whether err is a state-conflict failure: a duplicate
// grant, a re-approval, or an operation against exhausted or frozen state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrLicenseAlreadyExists) ||
		errors.Is(err, ErrAssetAlreadyExists) ||
		errors.Is(err, ErrAlreadyApproved) ||
		errors.Is(err, ErrAssetDisabled) ||
		errors.Is(err, ErrLicenseRevoked) ||
		errors.Is(err, ErrNoQuantity)
}

package registry

import (
	"errors"
	"fmt"
	"strings"

	"mailpoint.org/internal/address"
	"mailpoint.org/internal/authz"
)

var (
	ErrInvalidInput    = errors.New("registry: invalid input")
	ErrNotFound        = errors.New("registry: delivery point not found")
	ErrConflict        = errors.New("registry: address code already exists")
	ErrStaleVersion    = errors.New("registry: stale version")
	ErrAlreadyOccupied = errors.New("registry: point already occupied")
	ErrNotOccupied     = errors.New("registry: point not occupied")
	ErrTooLarge        = errors.New("registry: batch exceeds size cap")
	ErrDenied          = errors.New("registry: denied")
)

// DeniedError carries the authorization outcome for error payloads and audit.
type DeniedError struct {
	Capability authz.Capability
	Reason     authz.DenyReason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("registry: %s denied (%s)", e.Capability, e.Reason)
}

func (e *DeniedError) Unwrap() error { return ErrDenied }

// PartialConflictError aborts a batch whose candidate set collides with
// existing codes. No partial writes happen; the caller may retry with a
// narrowed range.
type PartialConflictError struct {
	Codes []address.Code
}

func (e *PartialConflictError) Error() string {
	parts := make([]string, len(e.Codes))
	for i, c := range e.Codes {
		parts[i] = c.String()
	}
	return fmt.Sprintf("registry: batch collides with existing codes: %s", strings.Join(parts, ", "))
}

func (e *PartialConflictError) Unwrap() error { return ErrConflict }

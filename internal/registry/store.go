package registry

import (
	"context"

	"mailpoint.org/internal/address"
)

// Store is the persistence surface of the registry. Implementations must make
// every version-guarded write atomic (a stale expected version fails with
// ErrStaleVersion, never a silent overwrite) and InsertBatch all-or-nothing.
type Store interface {
	// Insert adds a new delivery point. ErrConflict if the code exists.
	Insert(ctx context.Context, p DeliveryPoint) error
	// Get returns the point or ErrNotFound.
	Get(ctx context.Context, code address.Code) (DeliveryPoint, error)
	// SetActive toggles the active flag, guarded by the expected version.
	SetActive(ctx context.Context, code address.Code, active bool, expected int64) (DeliveryPoint, error)
	// Assign transitions Vacant -> Occupied. ErrAlreadyOccupied if held.
	Assign(ctx context.Context, code address.Code, occ Occupancy, expected int64) (DeliveryPoint, error)
	// Vacate transitions Occupied -> Vacant. ErrNotOccupied if vacant.
	Vacate(ctx context.Context, code address.Code, expected int64) (DeliveryPoint, error)
	// Delete removes the point. ErrNotFound if absent.
	Delete(ctx context.Context, code address.Code) error
	// List returns points matching the filter with code > after, ordered by
	// code ascending, at most limit items.
	List(ctx context.Context, f Filter, after string, limit int) ([]DeliveryPoint, error)
	// InsertBatch inserts all points or none. *PartialConflictError when any
	// candidate code already exists.
	InsertBatch(ctx context.Context, pts []DeliveryPoint) error
}

// Package registry is the catalog of delivery points keyed by address code,
// with activation and occupancy lifecycle, prefix-scoped queries, and batch
// provisioning.
package registry

import (
	"fmt"
	"time"

	"mailpoint.org/internal/address"
)

// PointType categorizes a delivery point.
type PointType string

const (
	PointDormitory PointType = "dormitory"
	PointOffice    PointType = "office"
	PointMailbox   PointType = "mailbox"
	PointOther     PointType = "other"
)

// ParsePointType validates a raw point type string.
func ParsePointType(raw string) (PointType, error) {
	switch PointType(raw) {
	case PointDormitory, PointOffice, PointMailbox, PointOther:
		return PointType(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown point type %q", ErrInvalidInput, raw)
	}
}

// Occupancy records who currently holds a delivery point.
type Occupancy struct {
	OccupantID   string    `json:"occupant_id"`
	OccupantName string    `json:"occupant_name"`
	OccupiedAt   time.Time `json:"occupied_at"`
}

// DeliveryPoint is the leaf entity addressed by a full code. The display
// names are a denormalized cache for presentation; identity is solely Code.
type DeliveryPoint struct {
	Code       address.Code `json:"code"`
	RegionName string       `json:"region_name"`
	ZoneName   string       `json:"zone_name"`
	PointName  string       `json:"point_name"`
	Type       PointType    `json:"type"`
	IsActive   bool         `json:"is_active"`
	Occupant   *Occupancy   `json:"occupant,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	// Version increments on every write; callers echo it back for
	// optimistic concurrency.
	Version int64 `json:"version"`
}

// Occupied reports whether the point currently has an occupant.
func (p DeliveryPoint) Occupied() bool { return p.Occupant != nil }

// Filter narrows a registry query. Zero fields are ignored.
type Filter struct {
	Prefix     address.Prefix
	IsActive   *bool
	Occupied   *bool
	TextSearch string
}

// Page is one slice of a restartable query. NextAfter is the cursor to pass
// as "after" on the next call; empty means the sequence is exhausted.
type Page struct {
	Items     []DeliveryPoint `json:"items"`
	NextAfter string          `json:"next_after,omitempty"`
}

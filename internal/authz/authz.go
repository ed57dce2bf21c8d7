// Package authz decides whether a staff member may perform an operation on an
// address code. Decisions are pure functions of the caller's AuthorityProfile
// and the target; there is no hidden state, so revoking an actor's authority
// takes effect on their next call.
package authz

import (
	"errors"
	"fmt"

	"mailpoint.org/internal/address"
)

// Level is the authority tier of a staff member. Higher levels hold broader
// prefixes.
type Level int

const (
	// LevelCourier works individual points inside one zone.
	LevelCourier Level = 1
	// LevelZoneLead manages a whole zone (region+zone prefix).
	LevelZoneLead Level = 2
	// LevelAreaManager manages an area of zones (region+area prefix).
	LevelAreaManager Level = 3
	// LevelRegionCoordinator coordinates an entire region.
	LevelRegionCoordinator Level = 4
)

// Valid reports whether l is one of the four defined tiers.
func (l Level) Valid() bool { return l >= LevelCourier && l <= LevelRegionCoordinator }

// Capability names an operation class subject to authorization.
type Capability string

const (
	CapView        Capability = "view"
	CapEdit        Capability = "edit"
	CapCreate      Capability = "create"
	CapDelete      Capability = "delete"
	CapBatchManage Capability = "batchManage"
)

// grants is the fixed capability matrix. Couriers view and edit only; zone
// leads add create/delete; batch provisioning starts at area managers.
var grants = map[Level]map[Capability]bool{
	LevelCourier:           {CapView: true, CapEdit: true},
	LevelZoneLead:          {CapView: true, CapEdit: true, CapCreate: true, CapDelete: true},
	LevelAreaManager:       {CapView: true, CapEdit: true, CapCreate: true, CapDelete: true, CapBatchManage: true},
	LevelRegionCoordinator: {CapView: true, CapEdit: true, CapCreate: true, CapDelete: true, CapBatchManage: true},
}

// Grants reports whether the level's matrix row includes the capability.
func (l Level) Grants(c Capability) bool { return grants[l][c] }

// Status of a staff account.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// AuthorityProfile is the resolved identity attached to every request by the
// authentication collaborator. This core trusts it as given.
type AuthorityProfile struct {
	ActorID        string
	Level          Level
	AssignedPrefix address.Prefix
	Status         Status
	// NamespaceOverride grants blanket view/edit over the whole namespace to
	// levels >= 2 that carry no narrower prefix. Always an explicit grant so
	// the audit trail shows it.
	NamespaceOverride bool
}

var ErrInvalidProfile = errors.New("authz: invalid authority profile")

// prefixLens maps each level to its allowed assigned-prefix lengths. Levels
// 2-4 align to segment boundaries; couriers may narrow into the point segment.
var prefixLens = map[Level][]int{
	LevelRegionCoordinator: {address.RegionWidth},
	LevelAreaManager:       {address.RegionWidth + address.AreaWidth},
	LevelZoneLead:          {address.RegionWidth + address.ZoneWidth},
	LevelCourier: {
		address.RegionWidth + address.ZoneWidth,
		address.RegionWidth + address.ZoneWidth + 1,
		address.CodeLength,
	},
}

// Validate checks structural well-formedness of the profile: level range,
// status, and prefix alignment for the level. Profiles with NamespaceOverride
// may omit the prefix.
func (p AuthorityProfile) Validate() error {
	if p.ActorID == "" {
		return fmt.Errorf("%w: actor id is required", ErrInvalidProfile)
	}
	if !p.Level.Valid() {
		return fmt.Errorf("%w: level %d out of range", ErrInvalidProfile, p.Level)
	}
	if p.Status != StatusActive && p.Status != StatusSuspended {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidProfile, p.Status)
	}
	if p.NamespaceOverride {
		if p.Level < LevelZoneLead {
			return fmt.Errorf("%w: namespace override is limited to levels >= %d", ErrInvalidProfile, LevelZoneLead)
		}
		if p.AssignedPrefix != "" {
			return fmt.Errorf("%w: namespace override excludes an assigned prefix", ErrInvalidProfile)
		}
		return nil
	}
	if p.AssignedPrefix == "" {
		return fmt.Errorf("%w: assigned prefix is required", ErrInvalidProfile)
	}
	if _, err := address.ParsePrefix(string(p.AssignedPrefix)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	for _, n := range prefixLens[p.Level] {
		if p.AssignedPrefix.Len() == n {
			return nil
		}
	}
	return fmt.Errorf("%w: prefix %q is not aligned for level %d", ErrInvalidProfile, p.AssignedPrefix, p.Level)
}

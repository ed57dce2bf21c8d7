package registry

import (
	"fmt"

	"mailpoint.org/internal/address"
)

// NumberingScheme selects how batch provisioning derives point segments.
type NumberingScheme string

const (
	// SchemeFloorRoom encodes one floor digit followed by one room digit.
	// Floors and rooms are capped at 9 so the two-character point segment
	// never truncates: distinct (floor, room) pairs always yield distinct
	// codes.
	SchemeFloorRoom NumberingScheme = "floorRoom"
	// SchemeSequential numbers points with a zero-padded running counter
	// across the whole range, independent of floor.
	SchemeSequential NumberingScheme = "sequential"
)

// ParseNumberingScheme validates a raw scheme string.
func ParseNumberingScheme(raw string) (NumberingScheme, error) {
	switch NumberingScheme(raw) {
	case SchemeFloorRoom, SchemeSequential:
		return NumberingScheme(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown numbering scheme %q", ErrInvalidInput, raw)
	}
}

const (
	maxFloor        = 9
	maxRoomPerFloor = 9
	// maxSequential is the capacity of a zero-padded decimal counter in the
	// point segment.
	maxSequential = 99
)

// Plan describes a batch-provisioning request under one zone.
type Plan struct {
	ZonePrefix     address.Prefix  `json:"zone_prefix"`
	FloorStart     int             `json:"floor_start"`
	FloorEnd       int             `json:"floor_end"`
	PointsPerFloor int             `json:"points_per_floor"`
	Scheme         NumberingScheme `json:"scheme"`
	Type           PointType       `json:"type"`
	RegionName     string          `json:"region_name"`
	ZoneName       string          `json:"zone_name"`
}

// Validate checks the plan's structural bounds. Range violations are input
// errors, never silently truncated.
func (pl Plan) Validate() error {
	if pl.ZonePrefix.Len() != address.RegionWidth+address.ZoneWidth {
		return fmt.Errorf("%w: zone prefix must be %d chars, got %q", ErrInvalidInput, address.RegionWidth+address.ZoneWidth, pl.ZonePrefix)
	}
	if _, err := address.ParsePrefix(string(pl.ZonePrefix)); err != nil {
		return err
	}
	if _, err := ParsePointType(string(pl.Type)); err != nil {
		return err
	}
	if pl.FloorStart < 1 || pl.FloorEnd < pl.FloorStart {
		return fmt.Errorf("%w: floor range [%d,%d]", ErrInvalidInput, pl.FloorStart, pl.FloorEnd)
	}
	if pl.PointsPerFloor < 1 {
		return fmt.Errorf("%w: points per floor %d", ErrInvalidInput, pl.PointsPerFloor)
	}
	switch pl.Scheme {
	case SchemeFloorRoom:
		if pl.FloorEnd > maxFloor {
			return fmt.Errorf("%w: floorRoom scheme supports floors 1-%d, got %d", ErrInvalidInput, maxFloor, pl.FloorEnd)
		}
		if pl.PointsPerFloor > maxRoomPerFloor {
			return fmt.Errorf("%w: floorRoom scheme supports %d rooms per floor, got %d", ErrInvalidInput, maxRoomPerFloor, pl.PointsPerFloor)
		}
	case SchemeSequential:
		if pl.Count() > maxSequential {
			return fmt.Errorf("%w: sequential scheme supports at most %d points, got %d", ErrInvalidInput, maxSequential, pl.Count())
		}
	default:
		return fmt.Errorf("%w: unknown numbering scheme %q", ErrInvalidInput, pl.Scheme)
	}
	return nil
}

// Count returns the number of points the plan generates.
func (pl Plan) Count() int {
	return (pl.FloorEnd - pl.FloorStart + 1) * pl.PointsPerFloor
}

// Generate produces the full candidate set in code order. The plan must have
// passed Validate; generation itself cannot collide within the set.
func (pl Plan) Generate() ([]DeliveryPoint, error) {
	if err := pl.Validate(); err != nil {
		return nil, err
	}
	out := make([]DeliveryPoint, 0, pl.Count())
	seq := 0
	for floor := pl.FloorStart; floor <= pl.FloorEnd; floor++ {
		for room := 1; room <= pl.PointsPerFloor; room++ {
			seq++
			var point string
			switch pl.Scheme {
			case SchemeFloorRoom:
				point = fmt.Sprintf("%d%d", floor, room)
			case SchemeSequential:
				point = fmt.Sprintf("%0*d", address.PointWidth, seq)
			}
			code, err := address.Parse(string(pl.ZonePrefix) + point)
			if err != nil {
				return nil, err
			}
			out = append(out, DeliveryPoint{
				Code:       code,
				RegionName: pl.RegionName,
				ZoneName:   pl.ZoneName,
				PointName:  fmt.Sprintf("Floor %d Room %d", floor, room),
				Type:       pl.Type,
				IsActive:   true,
			})
		}
	}
	return out, nil
}

// Package address implements the fixed-width hierarchical address code used to
// identify delivery points: region (2) + zone (3) + point (2), uppercase
// alphanumeric, no delimiters. Example: CS01A07.
package address

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// RegionWidth is the campus/organization segment width.
	RegionWidth = 2
	// AreaWidth and StructureWidth are the two parts of the zone segment.
	AreaWidth      = 2
	StructureWidth = 1
	// ZoneWidth is area + structure.
	ZoneWidth = AreaWidth + StructureWidth
	// PointWidth is the delivery-point segment width.
	PointWidth = 2
	// CodeLength is the full address code length.
	CodeLength = RegionWidth + ZoneWidth + PointWidth
)

// ErrInvalidFormat indicates a string that does not match the code schema.
var ErrInvalidFormat = errors.New("address: invalid format")

// Code is a validated full-length address code. The zero value is not valid;
// obtain one through Parse.
type Code string

// Parse normalizes and validates a raw address code.
func Parse(raw string) (Code, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) != CodeLength {
		return "", fmt.Errorf("%w: want %d chars, got %d", ErrInvalidFormat, CodeLength, len(s))
	}
	if !validChars(s) {
		return "", fmt.Errorf("%w: code %q contains characters outside [A-Z0-9]", ErrInvalidFormat, s)
	}
	return Code(s), nil
}

// MustParse panics on malformed input. For tests and constants.
func MustParse(raw string) Code {
	c, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Code) String() string { return string(c) }

// Region returns the leading campus/organization segment.
func (c Code) Region() string { return string(c[:RegionWidth]) }

// Zone returns the area+structure segment.
func (c Code) Zone() string { return string(c[RegionWidth : RegionWidth+ZoneWidth]) }

// Area returns the area part of the zone segment.
func (c Code) Area() string { return string(c[RegionWidth : RegionWidth+AreaWidth]) }

// Structure returns the structure part of the zone segment.
func (c Code) Structure() string {
	return string(c[RegionWidth+AreaWidth : RegionWidth+ZoneWidth])
}

// Point returns the trailing delivery-point segment.
func (c Code) Point() string { return string(c[RegionWidth+ZoneWidth:]) }

// ZonePrefix returns region+zone, the scope one level above a point.
func (c Code) ZonePrefix() Prefix { return Prefix(c[:RegionWidth+ZoneWidth]) }

// PrefixOf returns the leading n segments of a code (1 = region,
// 2 = region+zone, 3 = the full code).
func PrefixOf(c Code, segments int) (Prefix, error) {
	switch segments {
	case 1:
		return Prefix(c[:RegionWidth]), nil
	case 2:
		return Prefix(c[:RegionWidth+ZoneWidth]), nil
	case 3:
		return Prefix(c), nil
	default:
		return "", fmt.Errorf("%w: segment count %d", ErrInvalidFormat, segments)
	}
}

// Prefix is a validated leading substring of an address code, denoting a scope
// of authority. Segment alignment is the caller's policy; the codec only
// guarantees charset and length bounds.
type Prefix string

// ParsePrefix normalizes and validates a raw prefix.
func ParsePrefix(raw string) (Prefix, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) == 0 || len(s) > CodeLength {
		return "", fmt.Errorf("%w: prefix length %d out of range [1,%d]", ErrInvalidFormat, len(s), CodeLength)
	}
	if !validChars(s) {
		return "", fmt.Errorf("%w: prefix %q contains characters outside [A-Z0-9]", ErrInvalidFormat, s)
	}
	return Prefix(s), nil
}

func (p Prefix) String() string { return string(p) }

// Len returns the prefix length in characters.
func (p Prefix) Len() int { return len(p) }

// Matches reports whether code falls under this prefix.
func (p Prefix) Matches(c Code) bool {
	return strings.HasPrefix(string(c), string(p))
}

// Covers reports whether every code under other also falls under p, i.e. p is
// a leading substring of other.
func (p Prefix) Covers(other Prefix) bool {
	return strings.HasPrefix(string(other), string(p))
}

func validChars(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return false
		}
	}
	return true
}

package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"mailpoint.org/internal/address"
)

// InMemory implements Store with in-process concurrency safety. Used by tests,
// the smoke tool, and DSN-less development runs; production uses store/pg.
type InMemory struct {
	mu     sync.RWMutex
	points map[address.Code]*DeliveryPoint
	now    func() time.Time
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty registry store.
func NewInMemory() *InMemory {
	return &InMemory{
		points: make(map[address.Code]*DeliveryPoint),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemory) Insert(ctx context.Context, p DeliveryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.points[p.Code]; ok {
		return ErrConflict
	}
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Version = 1
	s.points[p.Code] = &p
	return nil
}

func (s *InMemory) Get(ctx context.Context, code address.Code) (DeliveryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.points[code]
	if !ok {
		return DeliveryPoint{}, ErrNotFound
	}
	return clone(*p), nil
}

func (s *InMemory) SetActive(ctx context.Context, code address.Code, active bool, expected int64) (DeliveryPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.points[code]
	if !ok {
		return DeliveryPoint{}, ErrNotFound
	}
	if p.Version != expected {
		return DeliveryPoint{}, ErrStaleVersion
	}
	p.IsActive = active
	s.bump(p)
	return clone(*p), nil
}

func (s *InMemory) Assign(ctx context.Context, code address.Code, occ Occupancy, expected int64) (DeliveryPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.points[code]
	if !ok {
		return DeliveryPoint{}, ErrNotFound
	}
	if p.Version != expected {
		return DeliveryPoint{}, ErrStaleVersion
	}
	if p.Occupant != nil {
		return DeliveryPoint{}, ErrAlreadyOccupied
	}
	if occ.OccupiedAt.IsZero() {
		occ.OccupiedAt = s.now()
	}
	p.Occupant = &occ
	s.bump(p)
	return clone(*p), nil
}

func (s *InMemory) Vacate(ctx context.Context, code address.Code, expected int64) (DeliveryPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.points[code]
	if !ok {
		return DeliveryPoint{}, ErrNotFound
	}
	if p.Version != expected {
		return DeliveryPoint{}, ErrStaleVersion
	}
	if p.Occupant == nil {
		return DeliveryPoint{}, ErrNotOccupied
	}
	p.Occupant = nil
	s.bump(p)
	return clone(*p), nil
}

func (s *InMemory) Delete(ctx context.Context, code address.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.points[code]; !ok {
		return ErrNotFound
	}
	delete(s.points, code)
	return nil
}

func (s *InMemory) List(ctx context.Context, f Filter, after string, limit int) ([]DeliveryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]address.Code, 0, len(s.points))
	for code := range s.points {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	var out []DeliveryPoint
	for _, code := range codes {
		if string(code) <= after {
			continue
		}
		p := s.points[code]
		if !matches(*p, f) {
			continue
		}
		out = append(out, clone(*p))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) InsertBatch(ctx context.Context, pts []DeliveryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var colliding []address.Code
	for _, p := range pts {
		if _, ok := s.points[p.Code]; ok {
			colliding = append(colliding, p.Code)
		}
	}
	if len(colliding) > 0 {
		return &PartialConflictError{Codes: colliding}
	}
	now := s.now()
	for _, p := range pts {
		p.CreatedAt = now
		p.UpdatedAt = now
		p.Version = 1
		cp := p
		s.points[p.Code] = &cp
	}
	return nil
}

func (s *InMemory) bump(p *DeliveryPoint) {
	p.Version++
	p.UpdatedAt = s.now()
}

func matches(p DeliveryPoint, f Filter) bool {
	if f.Prefix != "" && !f.Prefix.Matches(p.Code) {
		return false
	}
	if f.IsActive != nil && p.IsActive != *f.IsActive {
		return false
	}
	if f.Occupied != nil && p.Occupied() != *f.Occupied {
		return false
	}
	if f.TextSearch != "" {
		needle := strings.ToLower(f.TextSearch)
		hay := strings.ToLower(p.RegionName + " " + p.ZoneName + " " + p.PointName)
		if p.Occupant != nil {
			hay += " " + strings.ToLower(p.Occupant.OccupantName)
		}
		if !strings.Contains(hay, needle) {
			return false
		}
	}
	return true
}

func clone(p DeliveryPoint) DeliveryPoint {
	if p.Occupant != nil {
		occ := *p.Occupant
		p.Occupant = &occ
	}
	return p
}

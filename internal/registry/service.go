package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mailpoint.org/internal/address"
	"mailpoint.org/internal/audit"
	"mailpoint.org/internal/authz"
	"mailpoint.org/internal/obs"
	"mailpoint.org/internal/stream"
)

const (
	defaultBatchCap  = 500
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// EventSink receives committed mutation events. *stream.Stream satisfies it.
type EventSink interface {
	Publish(stream.Event)
}

// Service is the authorized surface of the registry. Every operation takes
// the caller's AuthorityProfile explicitly; nothing is read from ambient
// state. Denials and successful mutations are recorded for the audit
// collaborator.
type Service struct {
	store    Store
	batchCap int
	events   EventSink
	now      func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithBatchCap overrides the batch size cap.
func WithBatchCap(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchCap = n
		}
	}
}

// WithEventSink publishes committed mutations to the sink.
func WithEventSink(sink EventSink) Option {
	return func(s *Service) { s.events = sink }
}

// WithClock overrides the time source. For tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service over the given store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		batchCap: defaultBatchCap,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries a single-point create request.
type CreateInput struct {
	Code       string
	RegionName string
	ZoneName   string
	PointName  string
	Type       PointType
	IsActive   bool
}

// Create registers a single new delivery point. Requires create capability
// over the code.
func (s *Service) Create(ctx context.Context, actor authz.AuthorityProfile, in CreateInput) (DeliveryPoint, error) {
	code, err := address.Parse(in.Code)
	if err != nil {
		return DeliveryPoint{}, err
	}
	if _, err := ParsePointType(string(in.Type)); err != nil {
		return DeliveryPoint{}, err
	}
	if err := s.authorize(ctx, actor, address.Prefix(code), authz.CapCreate); err != nil {
		return DeliveryPoint{}, err
	}

	p := DeliveryPoint{
		Code:       code,
		RegionName: strings.TrimSpace(in.RegionName),
		ZoneName:   strings.TrimSpace(in.ZoneName),
		PointName:  strings.TrimSpace(in.PointName),
		Type:       in.Type,
		IsActive:   in.IsActive,
	}
	if err := s.store.Insert(ctx, p); err != nil {
		obs.RegistryMutation("create", "error")
		return DeliveryPoint{}, err
	}
	created, err := s.store.Get(ctx, code)
	if err != nil {
		return DeliveryPoint{}, err
	}
	s.committed(ctx, actor, authz.CapCreate, "create", created)
	return created, nil
}

// Get returns a single point. Requires view capability over the code.
func (s *Service) Get(ctx context.Context, actor authz.AuthorityProfile, rawCode string) (DeliveryPoint, error) {
	code, err := address.Parse(rawCode)
	if err != nil {
		return DeliveryPoint{}, err
	}
	if err := s.authorize(ctx, actor, address.Prefix(code), authz.CapView); err != nil {
		return DeliveryPoint{}, err
	}
	return s.store.Get(ctx, code)
}

// SetActive toggles the active flag. Requires edit; guarded by the caller's
// last-observed version.
func (s *Service) SetActive(ctx context.Context, actor authz.AuthorityProfile, rawCode string, active bool, version int64) (DeliveryPoint, error) {
	code, err := address.Parse(rawCode)
	if err != nil {
		return DeliveryPoint{}, err
	}
	if err := s.authorize(ctx, actor, address.Prefix(code), authz.CapEdit); err != nil {
		return DeliveryPoint{}, err
	}
	p, err := s.store.SetActive(ctx, code, active, version)
	if err != nil {
		obs.RegistryMutation("set_active", "error")
		return DeliveryPoint{}, err
	}
	s.committed(ctx, actor, authz.CapEdit, "set_active", p)
	return p, nil
}

// AssignOccupant transitions Vacant -> Occupied. Requires edit; guarded by
// the caller's last-observed version.
func (s *Service) AssignOccupant(ctx context.Context, actor authz.AuthorityProfile, rawCode, occupantID, occupantName string, version int64) (DeliveryPoint, error) {
	code, err := address.Parse(rawCode)
	if err != nil {
		return DeliveryPoint{}, err
	}
	occupantID = strings.TrimSpace(occupantID)
	if occupantID == "" {
		return DeliveryPoint{}, fmt.Errorf("%w: occupant id is required", ErrInvalidInput)
	}
	if err := s.authorize(ctx, actor, address.Prefix(code), authz.CapEdit); err != nil {
		return DeliveryPoint{}, err
	}
	occ := Occupancy{
		OccupantID:   occupantID,
		OccupantName: strings.TrimSpace(occupantName),
		OccupiedAt:   s.now(),
	}
	p, err := s.store.Assign(ctx, code, occ, version)
	if err != nil {
		obs.RegistryMutation("assign", "error")
		return DeliveryPoint{}, err
	}
	s.committed(ctx, actor, authz.CapEdit, "assign", p)
	return p, nil
}

// Vacate transitions Occupied -> Vacant. Requires edit; guarded by the
// caller's last-observed version.
func (s *Service) Vacate(ctx context.Context, actor authz.AuthorityProfile, rawCode string, version int64) (DeliveryPoint, error) {
	code, err := address.Parse(rawCode)
	if err != nil {
		return DeliveryPoint{}, err
	}
	if err := s.authorize(ctx, actor, address.Prefix(code), authz.CapEdit); err != nil {
		return DeliveryPoint{}, err
	}
	p, err := s.store.Vacate(ctx, code, version)
	if err != nil {
		obs.RegistryMutation("vacate", "error")
		return DeliveryPoint{}, err
	}
	s.committed(ctx, actor, authz.CapEdit, "vacate", p)
	return p, nil
}

// Delete removes a point. Requires delete capability.
func (s *Service) Delete(ctx context.Context, actor authz.AuthorityProfile, rawCode string) error {
	code, err := address.Parse(rawCode)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, address.Prefix(code), authz.CapDelete); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, code); err != nil {
		obs.RegistryMutation("delete", "error")
		return err
	}
	obs.RegistryMutation("delete", "ok")
	obs.AuthzDecision(string(authz.CapDelete), audit.OutcomeOK)
	_ = audit.Record(ctx, audit.Event{
		ActorID:    actor.ActorID,
		Capability: string(authz.CapDelete),
		TargetCode: code.String(),
		Outcome:    audit.OutcomeOK,
		Detail:     map[string]any{"op": "delete"},
	})
	if s.events != nil {
		s.events.Publish(stream.Event{
			Op:         "delete",
			Code:       code.String(),
			ZonePrefix: string(code.ZonePrefix()),
			ActorID:    actor.ActorID,
		})
	}
	return nil
}

// QueryInput narrows and pages a registry read.
type QueryInput struct {
	Prefix     string
	IsActive   *bool
	Occupied   *bool
	TextSearch string
	After      string
	Limit      int
}

// Query returns one page of points under the requested scope, ordered by
// address code ascending. Requires view over the filter prefix; when no
// prefix is given the caller's own prefix bounds the scope.
func (s *Service) Query(ctx context.Context, actor authz.AuthorityProfile, in QueryInput) (Page, error) {
	var scope address.Prefix
	if strings.TrimSpace(in.Prefix) != "" {
		p, err := address.ParsePrefix(in.Prefix)
		if err != nil {
			return Page{}, err
		}
		scope = p
	} else if actor.AssignedPrefix != "" {
		scope = actor.AssignedPrefix
	}
	// A pure-override admin with no prefix queries the whole namespace.
	if scope != "" {
		if err := s.authorize(ctx, actor, scope, authz.CapView); err != nil {
			return Page{}, err
		}
	} else if err := s.authorize(ctx, actor, "", authz.CapView); err != nil {
		return Page{}, err
	}

	limit := in.Limit
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	items, err := s.store.List(ctx, Filter{
		Prefix:     scope,
		IsActive:   in.IsActive,
		Occupied:   in.Occupied,
		TextSearch: strings.TrimSpace(in.TextSearch),
	}, strings.ToUpper(strings.TrimSpace(in.After)), limit)
	if err != nil {
		return Page{}, err
	}
	page := Page{Items: items}
	if len(items) == limit {
		page.NextAfter = items[len(items)-1].Code.String()
	}
	return page, nil
}

// ProvisionBatch generates and inserts a zone's worth of points as one atomic
// unit. Requires batchManage over the zone prefix. Any collision aborts the
// whole batch.
func (s *Service) ProvisionBatch(ctx context.Context, actor authz.AuthorityProfile, plan Plan) ([]DeliveryPoint, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, plan.ZonePrefix, authz.CapBatchManage); err != nil {
		return nil, err
	}
	if plan.Count() > s.batchCap {
		return nil, fmt.Errorf("%w: %d points, cap %d", ErrTooLarge, plan.Count(), s.batchCap)
	}
	candidates, err := plan.Generate()
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertBatch(ctx, candidates); err != nil {
		obs.RegistryMutation("provision", "error")
		return nil, err
	}
	inserted := make([]DeliveryPoint, 0, len(candidates))
	for _, c := range candidates {
		p, err := s.store.Get(ctx, c.Code)
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, p)
	}
	obs.RegistryMutation("provision", "ok")
	obs.ProvisionBatch(len(inserted))
	obs.AuthzDecision(string(authz.CapBatchManage), audit.OutcomeOK)
	_ = audit.Record(ctx, audit.Event{
		ActorID:    actor.ActorID,
		Capability: string(authz.CapBatchManage),
		TargetCode: string(plan.ZonePrefix),
		Outcome:    audit.OutcomeOK,
		Detail: map[string]any{
			"op":     "provision",
			"scheme": string(plan.Scheme),
			"points": len(inserted),
		},
	})
	if s.events != nil {
		s.events.Publish(stream.Event{
			Op:         "provision",
			Code:       string(plan.ZonePrefix),
			ZonePrefix: string(plan.ZonePrefix),
			ActorID:    actor.ActorID,
		})
	}
	return inserted, nil
}

// authorize runs the decision function over a scope (a full code or a
// prefix), recording denials for the audit collaborator.
func (s *Service) authorize(ctx context.Context, actor authz.AuthorityProfile, scope address.Prefix, capability authz.Capability) error {
	d := authz.AuthorizeScope(actor, scope, capability)
	if d.Allowed {
		return nil
	}
	obs.AuthzDecision(string(capability), audit.OutcomeDenied)
	_ = audit.Record(ctx, audit.Event{
		ActorID:    actor.ActorID,
		Capability: string(capability),
		TargetCode: string(scope),
		Outcome:    audit.OutcomeDenied,
		Detail:     map[string]any{"reason": string(d.Reason)},
	})
	return &DeniedError{Capability: capability, Reason: d.Reason}
}

// committed records a successful single-point mutation: metrics, audit, and
// the event stream.
func (s *Service) committed(ctx context.Context, actor authz.AuthorityProfile, capability authz.Capability, op string, p DeliveryPoint) {
	obs.RegistryMutation(op, "ok")
	obs.AuthzDecision(string(capability), audit.OutcomeOK)
	_ = audit.Record(ctx, audit.Event{
		ActorID:    actor.ActorID,
		Capability: string(capability),
		TargetCode: p.Code.String(),
		Outcome:    audit.OutcomeOK,
		Detail:     map[string]any{"op": op, "version": p.Version},
	})
	if s.events != nil {
		s.events.Publish(stream.Event{
			Op:         op,
			Code:       p.Code.String(),
			ZonePrefix: string(p.Code.ZonePrefix()),
			ActorID:    actor.ActorID,
			Occupied:   p.Occupied(),
		})
	}
}

package rental

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentfold.io/internal/identity"
	"rentfold.io/internal/policy"
)

// Service exposes actor-scoped rental operations. The acting identity is
// re-derived from the request context on every call; nothing here accepts
// a caller-supplied actor id.
type Service struct {
	engine *policy.Engine
	store  Store
	now    func() time.Time
}

// NewService constructs the rental service.
func NewService(engine *policy.Engine, store Store) (*Service, error) {
	if engine == nil || store == nil {
		return nil, errors.New("rental: engine and store are required")
	}
	return &Service{engine: engine, store: store, now: time.Now}, nil
}

func actorFrom(ctx context.Context) (identity.Actor, error) {
	actor, ok := identity.ActorFromContext(ctx)
	if !ok {
		return identity.Actor{}, ErrUnauthorized
	}
	return actor, nil
}

// CreatePropertyInput is the payload for property creation.
type CreatePropertyInput struct {
	Address   string
	UnitCount int
}

// CreateProperty registers a property owned by the acting landlord. The
// owner column is always set to the actor's own id; the write path rejects
// any payload attempting otherwise.
func (s *Service) CreateProperty(ctx context.Context, in CreatePropertyInput) (*Property, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	address := strings.TrimSpace(in.Address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	if in.UnitCount <= 0 {
		in.UnitCount = 1
	}

	dec := s.engine.AuthorizeWrite(ctx, actor, TableProperties, policy.OpCreate,
		nil, map[string]string{"owner_id": actor.ID})
	if !dec.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrDenied, dec.Reason)
	}

	prop := &Property{
		OwnerID:   actor.ID,
		Address:   address,
		UnitCount: in.UnitCount,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateProperty(ctx, prop); err != nil {
		return nil, err
	}
	return prop, nil
}

// ListProperties returns the properties visible to the acting identity.
func (s *Service) ListProperties(ctx context.Context) ([]*Property, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	pred, dec := s.engine.ReadPredicate(ctx, actor, TableProperties)
	if !dec.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrDenied, dec.Reason)
	}
	return s.store.ListProperties(ctx, pred)
}

// GetProperty fetches one property. Rows outside the actor's scope read as
// not found.
func (s *Service) GetProperty(ctx context.Context, id string) (*Property, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	pred, dec := s.engine.ReadPredicate(ctx, actor, TableProperties)
	if !dec.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrDenied, dec.Reason)
	}
	return s.store.GetProperty(ctx, id, pred)
}

// CreateLeaseInput is the payload for lease creation.
type CreateLeaseInput struct {
	PropertyID string
	TenantID   string
	RentCents  int64
	StartsOn   time.Time
	EndsOn     time.Time
}

// CreateLease binds a tenant to a property the acting landlord owns. The
// property lookup runs under the actor's own read predicate, so leasing
// out somebody else's property fails as not found.
func (s *Service) CreateLease(ctx context.Context, in CreateLeaseInput) (*Lease, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	in.PropertyID = strings.TrimSpace(in.PropertyID)
	in.TenantID = strings.TrimSpace(in.TenantID)
	if in.PropertyID == "" || in.TenantID == "" {
		return nil, fmt.Errorf("%w: property_id and tenant_id are required", ErrInvalidInput)
	}
	if in.RentCents <= 0 {
		return nil, fmt.Errorf("%w: rent_cents must be > 0", ErrInvalidInput)
	}

	pred, dec := s.engine.ReadPredicate(ctx, actor, TableProperties)
	if !dec.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrDenied, dec.Reason)
	}
	if _, err := s.store.GetProperty(ctx, in.PropertyID, pred); err != nil {
		return nil, err
	}

	dec = s.engine.AuthorizeWrite(ctx, actor, TableLeases, policy.OpCreate,
		nil, map[string]string{"owner_id": actor.ID})
	if !dec.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrDenied, dec.Reason)
	}

	starts := in.StartsOn
	if starts.IsZero() {
		starts = s.now().UTC()
	}
	lease := &Lease{
		PropertyID: in.PropertyID,
		OwnerID:    actor.ID,
		TenantID:   in.TenantID,
		RentCents:  in.RentCents,
		Status:     LeaseStatusActive,
		StartsOn:   starts,
		EndsOn:     in.EndsOn,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateLease(ctx, lease); err != nil {
		return nil, err
	}
	return lease, nil
}

// ListLeases returns the leases visible to the acting identity: their own
// as tenant, or those on properties they own.
func (s *Service) ListLeases(ctx context.Context) ([]*Lease, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	pred, dec := s.engine.ReadPredicate(ctx, actor, TableLeases)
	if !dec.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrDenied, dec.Reason)
	}
	return s.store.ListLeases(ctx, pred)
}

// ListPayments returns payments visible to the acting identity. For a
// forbidden scope the predicate returns zero rows, never an error.
func (s *Service) ListPayments(ctx context.Context) ([]*Payment, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	pred, dec := s.engine.ReadPredicate(ctx, actor, TablePayments)
	if !dec.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrDenied, dec.Reason)
	}
	return s.store.ListPayments(ctx, pred)
}

// GetPayment fetches one payment under the actor's read predicate.
func (s *Service) GetPayment(ctx context.Context, id string) (*Payment, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	pred, dec := s.engine.ReadPredicate(ctx, actor, TablePayments)
	if !dec.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrDenied, dec.Reason)
	}
	return s.store.GetPayment(ctx, id, pred)
}

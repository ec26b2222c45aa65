package rental

import (
	"context"
	"sort"
	"sync"
	"time"

	"rentfold.io/internal/ids"
	"rentfold.io/internal/policy"
)

// MemoryStore implements Store in process with predicate evaluation done
// the same way the Postgres layer does it: inside the lookup, not as a
// post-filter over fetched rows.
type MemoryStore struct {
	mu         sync.RWMutex
	properties map[string]*Property
	leases     map[string]*Lease
	payments   map[string]*Payment
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		properties: make(map[string]*Property),
		leases:     make(map[string]*Lease),
		payments:   make(map[string]*Payment),
	}
}

func (s *MemoryStore) CreateProperty(ctx context.Context, p *Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	s.properties[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetProperty(ctx context.Context, id string, pred policy.Predicate) (*Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	if !ok || !pred.Match(propertyColumns(p)) {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListProperties(ctx context.Context, pred policy.Predicate) ([]*Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*Property
	for _, p := range s.properties {
		if !pred.Match(propertyColumns(p)) {
			continue
		}
		cp := *p
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) CreateLease(ctx context.Context, l *Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = ids.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	cp := *l
	s.leases[l.ID] = &cp
	return nil
}

func (s *MemoryStore) GetLease(ctx context.Context, id string, pred policy.Predicate) (*Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leases[id]
	if !ok || !pred.Match(leaseColumns(l)) {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *MemoryStore) ListLeases(ctx context.Context, pred policy.Predicate) ([]*Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*Lease
	for _, l := range s.leases {
		if !pred.Match(leaseColumns(l)) {
			continue
		}
		cp := *l
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) GetPayment(ctx context.Context, id string, pred policy.Predicate) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok || !pred.Match(paymentColumns(p)) {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListPayments(ctx context.Context, pred policy.Predicate) ([]*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*Payment
	for _, p := range s.payments {
		if !pred.Match(paymentColumns(p)) {
			continue
		}
		cp := *p
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// InsertPayment and SettlePayment are the elevated write surface consumed
// by the billing gateway's in-memory wiring. They are intentionally not
// part of the actor-facing Store interface.

func (s *MemoryStore) InsertPayment(ctx context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *MemoryStore) SettlePayment(ctx context.Context, providerPaymentID, status string, settledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.ProviderPaymentID == providerPaymentID {
			if p.SettledAt != nil && !settledAt.After(*p.SettledAt) {
				return ErrStale
			}
			p.Status = status
			t := settledAt
			p.SettledAt = &t
			return nil
		}
	}
	return ErrNotFound
}

func propertyColumns(p *Property) func(string) string {
	return func(col string) string {
		if col == "owner_id" {
			return p.OwnerID
		}
		return ""
	}
}

func leaseColumns(l *Lease) func(string) string {
	return func(col string) string {
		switch col {
		case "owner_id":
			return l.OwnerID
		case "tenant_id":
			return l.TenantID
		}
		return ""
	}
}

func paymentColumns(p *Payment) func(string) string {
	return func(col string) string {
		switch col {
		case "owner_id":
			return p.OwnerID
		case "tenant_id":
			return p.TenantID
		}
		return ""
	}
}

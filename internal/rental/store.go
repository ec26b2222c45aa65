package rental

import (
	"context"

	"rentfold.io/internal/policy"
)

// Store describes persistence for rental resources. Every read takes the
// policy engine's predicate and compiles it into the lookup, so a row the
// actor may not see is indistinguishable from a row that does not exist.
type Store interface {
	CreateProperty(ctx context.Context, p *Property) error
	GetProperty(ctx context.Context, id string, pred policy.Predicate) (*Property, error)
	ListProperties(ctx context.Context, pred policy.Predicate) ([]*Property, error)

	CreateLease(ctx context.Context, l *Lease) error
	GetLease(ctx context.Context, id string, pred policy.Predicate) (*Lease, error)
	ListLeases(ctx context.Context, pred policy.Predicate) ([]*Lease, error)

	GetPayment(ctx context.Context, id string, pred policy.Predicate) (*Payment, error)
	ListPayments(ctx context.Context, pred policy.Predicate) ([]*Payment, error)
}

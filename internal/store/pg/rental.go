package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentfold.io/internal/ids"
	"rentfold.io/internal/policy"
	"rentfold.io/internal/rental"
)

// Rentals implements rental.Store over Postgres. Every read ANDs the
// caller's policy predicate into the WHERE clause, so rows outside the
// actor's scope are filtered by the database itself.
type Rentals struct {
	db *sql.DB
}

var _ rental.Store = (*Rentals)(nil)

func (s *Rentals) CreateProperty(ctx context.Context, p *rental.Property) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into properties (id, owner_id, address, unit_count)
		values ($1, $2, $3, $4)
		returning created_at
	`, p.ID, p.OwnerID, p.Address, p.UnitCount)
	return row.Scan(&p.CreatedAt)
}

func (s *Rentals) GetProperty(ctx context.Context, id string, pred policy.Predicate) (*rental.Property, error) {
	clause, args := pred.SQL(2)
	query := fmt.Sprintf(`
		select id, owner_id, address, unit_count, created_at
		from properties
		where id = $1 and %s
	`, clause)

	var p rental.Property
	err := s.db.QueryRowContext(ctx, query, append([]any{id}, args...)...).
		Scan(&p.ID, &p.OwnerID, &p.Address, &p.UnitCount, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rental.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Rentals) ListProperties(ctx context.Context, pred policy.Predicate) ([]*rental.Property, error) {
	clause, args := pred.SQL(1)
	query := fmt.Sprintf(`
		select id, owner_id, address, unit_count, created_at
		from properties
		where %s
		order by id
	`, clause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*rental.Property
	for rows.Next() {
		var p rental.Property
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Address, &p.UnitCount, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &p)
	}
	return res, rows.Err()
}

func (s *Rentals) CreateLease(ctx context.Context, l *rental.Lease) error {
	if l.ID == "" {
		l.ID = ids.New()
	}
	var ends any
	if !l.EndsOn.IsZero() {
		ends = l.EndsOn
	}
	row := s.db.QueryRowContext(ctx, `
		insert into leases (id, property_id, owner_id, tenant_id, rent_cents, status, starts_on, ends_on)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning created_at
	`, l.ID, l.PropertyID, l.OwnerID, l.TenantID, l.RentCents, l.Status, l.StartsOn, ends)
	if err := row.Scan(&l.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return rental.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Rentals) GetLease(ctx context.Context, id string, pred policy.Predicate) (*rental.Lease, error) {
	clause, args := pred.SQL(2)
	query := fmt.Sprintf(`
		select id, property_id, owner_id, tenant_id, rent_cents, status, starts_on, coalesce(ends_on, 'epoch'::timestamptz), created_at
		from leases
		where id = $1 and %s
	`, clause)

	var l rental.Lease
	var ends time.Time
	err := s.db.QueryRowContext(ctx, query, append([]any{id}, args...)...).
		Scan(&l.ID, &l.PropertyID, &l.OwnerID, &l.TenantID, &l.RentCents, &l.Status, &l.StartsOn, &ends, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rental.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ends.Year() > 1970 {
		l.EndsOn = ends
	}
	return &l, nil
}

func (s *Rentals) ListLeases(ctx context.Context, pred policy.Predicate) ([]*rental.Lease, error) {
	clause, args := pred.SQL(1)
	query := fmt.Sprintf(`
		select id, property_id, owner_id, tenant_id, rent_cents, status, starts_on, coalesce(ends_on, 'epoch'::timestamptz), created_at
		from leases
		where %s
		order by id
	`, clause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*rental.Lease
	for rows.Next() {
		var l rental.Lease
		var ends time.Time
		if err := rows.Scan(&l.ID, &l.PropertyID, &l.OwnerID, &l.TenantID, &l.RentCents, &l.Status, &l.StartsOn, &ends, &l.CreatedAt); err != nil {
			return nil, err
		}
		if ends.Year() > 1970 {
			l.EndsOn = ends
		}
		res = append(res, &l)
	}
	return res, rows.Err()
}

func (s *Rentals) GetPayment(ctx context.Context, id string, pred policy.Predicate) (*rental.Payment, error) {
	clause, args := pred.SQL(2)
	query := fmt.Sprintf(`
		select id, lease_id, owner_id, tenant_id, amount_cents, status, coalesce(provider_payment_id, ''), settled_at, created_at
		from payments
		where id = $1 and %s
	`, clause)

	var p rental.Payment
	err := s.db.QueryRowContext(ctx, query, append([]any{id}, args...)...).
		Scan(&p.ID, &p.LeaseID, &p.OwnerID, &p.TenantID, &p.AmountCents, &p.Status, &p.ProviderPaymentID, &p.SettledAt, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rental.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Rentals) ListPayments(ctx context.Context, pred policy.Predicate) ([]*rental.Payment, error) {
	clause, args := pred.SQL(1)
	query := fmt.Sprintf(`
		select id, lease_id, owner_id, tenant_id, amount_cents, status, coalesce(provider_payment_id, ''), settled_at, created_at
		from payments
		where %s
		order by id
	`, clause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*rental.Payment
	for rows.Next() {
		var p rental.Payment
		if err := rows.Scan(&p.ID, &p.LeaseID, &p.OwnerID, &p.TenantID, &p.AmountCents, &p.Status, &p.ProviderPaymentID, &p.SettledAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &p)
	}
	return res, rows.Err()
}

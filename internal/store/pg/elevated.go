package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"rentfold.io/internal/billing"
	"rentfold.io/internal/ids"
	"rentfold.io/internal/rental"
)

// Elevated implements billing.Store over its own connection, opened with
// the elevated database credential. The actor-scoped Store never holds
// grants on these tables; separating the handles keeps that enforceable
// at the database role level.
type Elevated struct {
	db *sql.DB
}

var _ billing.Store = (*Elevated)(nil)

// OpenElevated connects with the elevated credential.
func OpenElevated(dsn string) (*Elevated, error) {
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}
	return &Elevated{db: db}, nil
}

// NewElevated wraps an existing handle, for tests.
func NewElevated(db *sql.DB) *Elevated { return &Elevated{db: db} }

func (s *Elevated) Close() error { return s.db.Close() }

func (s *Elevated) DB() *sql.DB { return s.db }

func (s *Elevated) RecordReceipt(ctx context.Context, ev billing.Event) error {
	_, err := s.db.ExecContext(ctx, `
		insert into billing_receipts (id, provider_event_id, event_type, payload)
		values ($1, $2, $3, $4)
	`, ids.New(), ev.ProviderEventID, ev.Type, []byte(ev.Raw))
	return err
}

// ApplyEvent runs the ledger insert and the event's effect in one
// transaction. The ledger goes first: a unique violation on the provider
// event id means the event was already processed, the transaction rolls
// back, and nothing is mutated.
func (s *Elevated) ApplyEvent(ctx context.Context, ev billing.Event) (billing.Outcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		insert into billing_ledger (provider_event_id, event_type, occurred_at)
		values ($1, $2, $3)
	`, ev.ProviderEventID, ev.Type, ev.OccurredAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return billing.OutcomeDuplicate, nil
		}
		return "", err
	}

	outcome, err := s.applyEffect(ctx, tx, ev)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *Elevated) applyEffect(ctx context.Context, tx *sql.Tx, ev billing.Event) (billing.Outcome, error) {
	switch ev.Type {
	case billing.EventSubscriptionActivated, billing.EventSubscriptionUpdated, billing.EventSubscriptionCanceled:
		return s.applyMirror(ctx, tx, ev)
	case billing.EventPaymentSettled, billing.EventPaymentFailed:
		return s.applyPayment(ctx, tx, ev)
	}
	return billing.OutcomeIgnored, nil
}

// applyMirror upserts the mirror row, guarded so an event can never
// overwrite state committed from a later-occurring event.
func (s *Elevated) applyMirror(ctx context.Context, tx *sql.Tx, ev billing.Event) (billing.Outcome, error) {
	status, ok := billing.SubscriptionStatusFor(ev)
	if !ok || ev.Data.ActorID == "" {
		return billing.OutcomeIgnored, nil
	}

	res, err := tx.ExecContext(ctx, `
		insert into billing_mirror (actor_id, provider_account_id, subscription_status, event_occurred_at, updated_at)
		values ($1, $2, $3, $4, now())
		on conflict (actor_id) do update
		set provider_account_id = excluded.provider_account_id,
		    subscription_status = excluded.subscription_status,
		    event_occurred_at   = excluded.event_occurred_at,
		    updated_at          = now()
		where billing_mirror.event_occurred_at < excluded.event_occurred_at
	`, ev.Data.ActorID, ev.Data.ProviderAccountID, status, ev.OccurredAt)
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return billing.OutcomeStale, nil
	}
	return billing.OutcomeApplied, nil
}

// applyPayment settles or fails a payment row. settled_at holds the
// occurrence timestamp of the last applied payment event, and the update
// only fires when the incoming event advances it, the same guard the
// mirror upsert uses.
func (s *Elevated) applyPayment(ctx context.Context, tx *sql.Tx, ev billing.Event) (billing.Outcome, error) {
	if ev.Data.ProviderPaymentID == "" {
		return billing.OutcomeIgnored, nil
	}
	status := rental.PaymentStatusSettled
	if ev.Type == billing.EventPaymentFailed {
		status = rental.PaymentStatusFailed
	}

	res, err := tx.ExecContext(ctx, `
		update payments
		set status = $1, settled_at = $2
		where provider_payment_id = $3
		  and (settled_at is null or settled_at < $2)
	`, status, ev.OccurredAt, ev.Data.ProviderPaymentID)
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var exists bool
		err := tx.QueryRowContext(ctx, `
			select exists(select 1 from payments where provider_payment_id = $1)
		`, ev.Data.ProviderPaymentID).Scan(&exists)
		if err != nil {
			return "", err
		}
		if exists {
			return billing.OutcomeStale, nil
		}
		return billing.OutcomeIgnored, nil
	}
	return billing.OutcomeApplied, nil
}

func (s *Elevated) Snapshot(ctx context.Context, actorID string) (billing.MirrorRecord, error) {
	var rec billing.MirrorRecord
	err := s.db.QueryRowContext(ctx, `
		select actor_id, coalesce(provider_account_id, ''), subscription_status, event_occurred_at, updated_at
		from billing_mirror where actor_id = $1
	`, actorID).Scan(&rec.ActorID, &rec.ProviderAccountID, &rec.SubscriptionStatus, &rec.EventOccurredAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.MirrorRecord{}, billing.ErrNotFound
	}
	if err != nil {
		return billing.MirrorRecord{}, err
	}
	return rec, nil
}

// InsertPayment creates a pending payment row from provider data. It is an
// elevated write used when the provider initiates a charge the service has
// not seen yet.
func (s *Elevated) InsertPayment(ctx context.Context, p *rental.Payment) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.Status == "" {
		p.Status = rental.PaymentStatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into payments (id, lease_id, owner_id, tenant_id, amount_cents, status, provider_payment_id, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.LeaseID, p.OwnerID, p.TenantID, p.AmountCents, p.Status, nullable(p.ProviderPaymentID), p.CreatedAt)
	return err
}

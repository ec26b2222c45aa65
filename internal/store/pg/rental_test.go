package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"rentfold.io/internal/identity"
	"rentfold.io/internal/policy"
	"rentfold.io/internal/rental"
)

func predicateFor(t *testing.T, actor identity.Actor, table string) policy.Predicate {
	t.Helper()
	engine, err := policy.NewEngine(rental.Tables()...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	pred, dec := engine.ReadPredicate(context.Background(), actor, table)
	if !dec.Allowed {
		t.Fatalf("predicate denied: %s", dec.Reason)
	}
	return pred
}

func TestListPaymentsRendersOwnershipPredicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	pred := predicateFor(t, identity.Actor{ID: "tenant-1", Role: identity.RoleTenant}, rental.TablePayments)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "lease_id", "owner_id", "tenant_id", "amount_cents", "status", "provider_payment_id", "settled_at", "created_at",
	}).AddRow("pay-1", "lease-1", "owner-1", "tenant-1", int64(120000), "settled", "pay_77", now, now)

	// The predicate lands in the WHERE clause with the actor id bound for
	// each ownership column.
	mock.ExpectQuery(`from payments\s+where \(owner_id = \$1 or tenant_id = \$2\)`).
		WithArgs("tenant-1", "tenant-1").
		WillReturnRows(rows)

	got, err := (&Store{db: db}).Rentals().ListPayments(context.Background(), pred)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(got) != 1 || got[0].ID != "pay-1" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetPropertyOutOfScopeIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	pred := predicateFor(t, identity.Actor{ID: "owner-2", Role: identity.RoleOwner}, rental.TableProperties)

	mock.ExpectQuery(`from properties\s+where id = \$1 and \(owner_id = \$2\)`).
		WithArgs("prop-1", "owner-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "address", "unit_count", "created_at"}))

	_, err = (&Store{db: db}).Rentals().GetProperty(context.Background(), "prop-1", pred)
	if !errors.Is(err, rental.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSystemPredicateRendersTrue(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	pred := predicateFor(t, identity.SystemActor(), rental.TableProperties)

	mock.ExpectQuery(`from properties\s+where true`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "address", "unit_count", "created_at"}))

	if _, err := (&Store{db: db}).Rentals().ListProperties(context.Background(), pred); err != nil {
		t.Fatalf("ListProperties: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreatePropertyReturnsTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("insert into properties").
		WithArgs(sqlmock.AnyArg(), "owner-1", "12 Elm St", 4).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	p := &rental.Property{OwnerID: "owner-1", Address: "12 Elm St", UnitCount: 4}
	if err := (&Store{db: db}).Rentals().CreateProperty(context.Background(), p); err != nil {
		t.Fatalf("CreateProperty: %v", err)
	}
	if p.ID == "" {
		t.Fatal("id not assigned")
	}
	if !p.CreatedAt.Equal(now) {
		t.Fatalf("created_at not captured: %v", p.CreatedAt)
	}
}

package rental

import (
	"context"
	"errors"
	"testing"
	"time"

	"rentfold.io/internal/identity"
	"rentfold.io/internal/policy"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	engine, err := policy.NewEngine(Tables()...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	store := NewMemoryStore()
	svc, err := NewService(engine, store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func asActor(id string, role identity.Role) context.Context {
	return identity.ContextWithActor(context.Background(), identity.Actor{ID: id, Role: role})
}

func TestListPaymentsScopedToActor(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	mine := &Payment{
		LeaseID:     "lease-1",
		OwnerID:     "owner-1",
		TenantID:    "tenant-1",
		AmountCents: 120000,
		Status:      PaymentStatusSettled,
	}
	other := &Payment{
		LeaseID:     "lease-2",
		OwnerID:     "owner-1",
		TenantID:    "tenant-2",
		AmountCents: 95000,
		Status:      PaymentStatusSettled,
	}
	if err := store.InsertPayment(ctx, mine); err != nil {
		t.Fatalf("InsertPayment: %v", err)
	}
	if err := store.InsertPayment(ctx, other); err != nil {
		t.Fatalf("InsertPayment: %v", err)
	}

	got, err := svc.ListPayments(asActor("tenant-1", identity.RoleTenant))
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 payment, got %d", len(got))
	}
	if got[0].TenantID != "tenant-1" {
		t.Fatalf("expected tenant-1 payment, got tenant %q", got[0].TenantID)
	}

	// The landlord on both leases sees both rows.
	got, err = svc.ListPayments(asActor("owner-1", identity.RoleOwner))
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 payments for owner, got %d", len(got))
	}
}

func TestGetPaymentOutsideScopeReadsAsNotFound(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	p := &Payment{LeaseID: "lease-1", OwnerID: "owner-1", TenantID: "tenant-1", AmountCents: 5000}
	if err := store.InsertPayment(ctx, p); err != nil {
		t.Fatalf("InsertPayment: %v", err)
	}

	_, err := svc.GetPayment(asActor("tenant-2", identity.RoleTenant), p.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign payment, got %v", err)
	}
}

func TestCreatePropertyRequiresOwnerRole(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateProperty(asActor("tenant-1", identity.RoleTenant), CreatePropertyInput{Address: "12 Elm St"})
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied for tenant creating property, got %v", err)
	}

	prop, err := svc.CreateProperty(asActor("owner-1", identity.RoleOwner), CreatePropertyInput{Address: "12 Elm St", UnitCount: 4})
	if err != nil {
		t.Fatalf("CreateProperty: %v", err)
	}
	if prop.OwnerID != "owner-1" {
		t.Fatalf("owner column not pinned to actor, got %q", prop.OwnerID)
	}
}

func TestCreateLeaseOnForeignPropertyFails(t *testing.T) {
	svc, _ := newTestService(t)

	prop, err := svc.CreateProperty(asActor("owner-1", identity.RoleOwner), CreatePropertyInput{Address: "8 Oak Ave"})
	if err != nil {
		t.Fatalf("CreateProperty: %v", err)
	}

	in := CreateLeaseInput{PropertyID: prop.ID, TenantID: "tenant-1", RentCents: 150000}

	// Another landlord cannot lease out a property they do not own. The
	// lookup is predicate-scoped, so the failure is indistinguishable from
	// the property not existing.
	_, err = svc.CreateLease(asActor("owner-2", identity.RoleOwner), in)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign property, got %v", err)
	}

	lease, err := svc.CreateLease(asActor("owner-1", identity.RoleOwner), in)
	if err != nil {
		t.Fatalf("CreateLease: %v", err)
	}
	if lease.OwnerID != "owner-1" || lease.TenantID != "tenant-1" {
		t.Fatalf("unexpected lease parties: owner=%q tenant=%q", lease.OwnerID, lease.TenantID)
	}
	if lease.Status != LeaseStatusActive {
		t.Fatalf("expected active lease, got %q", lease.Status)
	}
}

func TestLeaseVisibleToBothParties(t *testing.T) {
	svc, _ := newTestService(t)

	prop, err := svc.CreateProperty(asActor("owner-1", identity.RoleOwner), CreatePropertyInput{Address: "8 Oak Ave"})
	if err != nil {
		t.Fatalf("CreateProperty: %v", err)
	}
	lease, err := svc.CreateLease(asActor("owner-1", identity.RoleOwner), CreateLeaseInput{
		PropertyID: prop.ID,
		TenantID:   "tenant-1",
		RentCents:  99000,
		StartsOn:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateLease: %v", err)
	}

	for _, tc := range []struct {
		id   string
		role identity.Role
		want int
	}{
		{"owner-1", identity.RoleOwner, 1},
		{"tenant-1", identity.RoleTenant, 1},
		{"tenant-2", identity.RoleTenant, 0},
	} {
		got, err := svc.ListLeases(asActor(tc.id, tc.role))
		if err != nil {
			t.Fatalf("ListLeases(%s): %v", tc.id, err)
		}
		if len(got) != tc.want {
			t.Fatalf("ListLeases(%s): expected %d leases, got %d", tc.id, tc.want, len(got))
		}
		if tc.want == 1 && got[0].ID != lease.ID {
			t.Fatalf("ListLeases(%s): unexpected lease %q", tc.id, got[0].ID)
		}
	}
}

func TestMissingActorIsUnauthorized(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.ListProperties(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without actor, got %v", err)
	}
}

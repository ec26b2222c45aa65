package rental

import (
	"errors"
	"time"

	"rentfold.io/internal/identity"
	"rentfold.io/internal/policy"
)

// Table names registered with the policy engine.
const (
	TableProperties = "properties"
	TableLeases     = "leases"
	TablePayments   = "payments"
)

// Payment lifecycle states. Settlement transitions happen only on the
// elevated path, driven by verified billing events.
const (
	PaymentStatusPending = "pending"
	PaymentStatusSettled = "settled"
	PaymentStatusFailed  = "failed"
)

// Lease states.
const (
	LeaseStatusActive = "active"
	LeaseStatusEnded  = "ended"
)

var (
	ErrNotFound     = errors.New("rental: not found")
	ErrStale        = errors.New("rental: stale update")
	ErrInvalidInput = errors.New("rental: invalid input")
	ErrUnauthorized = errors.New("rental: unauthorized")
	ErrDenied       = errors.New("rental: denied")
)

// Property is a landlord-owned building or unit.
type Property struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Address   string    `json:"address"`
	UnitCount int       `json:"unit_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Lease binds a tenant to a property.
type Lease struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	OwnerID    string    `json:"owner_id"`
	TenantID   string    `json:"tenant_id"`
	RentCents  int64     `json:"rent_cents"`
	Status     string    `json:"status"`
	StartsOn   time.Time `json:"starts_on"`
	EndsOn     time.Time `json:"ends_on,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Payment mirrors one rent payment. Rows are created and settled only by
// the event synchronizer through the elevated-access gateway; actor-scoped
// code reads them through the ownership predicate.
type Payment struct {
	ID                string     `json:"id"`
	LeaseID           string     `json:"lease_id"`
	OwnerID           string     `json:"owner_id"`
	TenantID          string     `json:"tenant_id"`
	AmountCents       int64      `json:"amount_cents"`
	Status            string     `json:"status"`
	ProviderPaymentID string     `json:"provider_payment_id,omitempty"`
	SettledAt         *time.Time `json:"settled_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Tables returns the policy registrations for the rental schema. Payments
// carry ownership columns for predicate-scoped reads but are elevated for
// writes: no actor-scoped code path can create or settle one.
func Tables() []policy.TableSpec {
	return []policy.TableSpec{
		{Name: TableProperties, OwnerColumn: "owner_id", WriteRole: identity.RoleOwner},
		{Name: TableLeases, OwnerColumn: "owner_id", TenantColumn: "tenant_id", WriteRole: identity.RoleOwner},
		{Name: TablePayments, OwnerColumn: "owner_id", TenantColumn: "tenant_id", Elevated: true},
	}
}

package billing

import (
	"context"

	"rentfold.io/internal/audit"
	"rentfold.io/internal/identity"
)

// Gateway is the elevated-access path to billing storage. It is a distinct
// type rather than a role flag on an actor: no credential resolved from a
// request can ever be one, code has to hold the gateway value to write.
// Every write through it lands in the audit log with the provider event id.
type Gateway struct {
	store Store
}

var _ identity.MirrorReader = (*Gateway)(nil)

// NewGateway wraps the elevated store.
func NewGateway(store Store) *Gateway {
	return &Gateway{store: store}
}

// RecordReceipt appends the raw event to the receipt log.
func (g *Gateway) RecordReceipt(ctx context.Context, ev Event) error {
	if err := g.store.RecordReceipt(ctx, ev); err != nil {
		return Retryable(err)
	}
	return nil
}

// ApplyEvent runs the transactional ledger-and-mirror write and logs it.
func (g *Gateway) ApplyEvent(ctx context.Context, ev Event) (Outcome, error) {
	outcome, err := g.store.ApplyEvent(ctx, ev)
	if err != nil {
		audit.LogEvent(ctx, "billing.apply_failed", map[string]any{
			"provider_event_id": ev.ProviderEventID,
			"event_type":        ev.Type,
			"error":             err.Error(),
		})
		return outcome, err
	}
	audit.LogEvent(ctx, "billing.apply", map[string]any{
		"provider_event_id": ev.ProviderEventID,
		"event_type":        ev.Type,
		"outcome":           string(outcome),
	})
	return outcome, nil
}

// Snapshot exposes the committed mirror state for credential enrichment.
func (g *Gateway) Snapshot(ctx context.Context, actorID string) (identity.MirrorSnapshot, error) {
	rec, err := g.store.Snapshot(ctx, actorID)
	if err != nil {
		return identity.MirrorSnapshot{}, err
	}
	return identity.MirrorSnapshot{
		ProviderAccountID:  rec.ProviderAccountID,
		SubscriptionStatus: rec.SubscriptionStatus,
	}, nil
}

package identity

import "context"

// BillingStatusUnknown is the conservative default embedded into a
// credential when no billing record exists or the mirror lookup fails.
const BillingStatusUnknown = "unknown"

// EnrichedClaims are the authorization-relevant facts looked up once per
// credential issuance and embedded into the issued credential.
type EnrichedClaims struct {
	BillingStatus    string
	BillingAccountID string
}

// MirrorSnapshot is the committed billing-mirror state for one actor.
type MirrorSnapshot struct {
	ProviderAccountID  string
	SubscriptionStatus string
}

// MirrorReader reads the latest committed billing-mirror snapshot. It is
// the only billing dependency of credential issuance: enrichment never
// calls the billing provider directly.
type MirrorReader interface {
	Snapshot(ctx context.Context, actorID string) (MirrorSnapshot, error)
}

// Enricher produces the enrichment snapshot for an actor.
type Enricher struct {
	mirror MirrorReader
}

// NewEnricher constructs an Enricher over the billing mirror.
func NewEnricher(mirror MirrorReader) *Enricher {
	return &Enricher{mirror: mirror}
}

// Enrich performs the single mirror read per issuance. A failed lookup or a
// missing billing record yields conservative defaults instead of an error:
// credential issuance must not be blocked by billing-system unavailability.
func (e *Enricher) Enrich(ctx context.Context, actorID string) EnrichedClaims {
	if e == nil || e.mirror == nil {
		return EnrichedClaims{BillingStatus: BillingStatusUnknown}
	}
	snap, err := e.mirror.Snapshot(ctx, actorID)
	if err != nil || snap.SubscriptionStatus == "" {
		return EnrichedClaims{BillingStatus: BillingStatusUnknown}
	}
	return EnrichedClaims{
		BillingStatus:    snap.SubscriptionStatus,
		BillingAccountID: snap.ProviderAccountID,
	}
}

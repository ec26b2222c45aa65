package billing

import (
	"context"
	"time"
)

// Store is the storage surface for billing synchronization. Implementations
// back it with the elevated storage credential; no actor-scoped connection
// can reach these tables.
type Store interface {
	// RecordReceipt appends the raw verified event to the receipt log
	// before any processing. Failure here must surface as retryable.
	RecordReceipt(ctx context.Context, ev Event) error

	// ApplyEvent atomically inserts the ledger entry and applies the
	// event's effect. The ledger insert goes first inside the same
	// transaction; a unique violation on the provider event id rolls the
	// whole thing back and reports OutcomeDuplicate. Mirror writes are
	// guarded by the event occurrence timestamp so replays and reordered
	// deliveries cannot regress committed state.
	ApplyEvent(ctx context.Context, ev Event) (Outcome, error)

	// Snapshot reads the committed mirror row for an actor. ErrNotFound
	// when no billing state is mirrored yet.
	Snapshot(ctx context.Context, actorID string) (MirrorRecord, error)
}

// PaymentSettler applies a payment event to the rental payment rows. It is
// the only path that can move a payment out of pending. settledAt carries
// the event's occurrence timestamp; implementations keep it on the row and
// reject writes that do not advance it, so reordered payment events cannot
// regress a settled row.
type PaymentSettler interface {
	SettlePayment(ctx context.Context, providerPaymentID, status string, settledAt time.Time) error
}

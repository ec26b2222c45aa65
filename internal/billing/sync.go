package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"rentfold.io/internal/identity"
	"rentfold.io/internal/signal"
)

// Synchronizer is the single writer of the billing mirror. It consumes
// verified events, runs them through the elevated gateway, and emits
// re-issuance signals for events that changed an actor's mirrored state.
type Synchronizer struct {
	gateway *Gateway
	signals *signal.Hub
	now     func() time.Time
}

// SyncOption customises a Synchronizer.
type SyncOption func(*Synchronizer)

// WithSyncClock overrides the clock, for tests.
func WithSyncClock(now func() time.Time) SyncOption {
	return func(s *Synchronizer) { s.now = now }
}

// NewSynchronizer constructs the synchronizer.
func NewSynchronizer(gateway *Gateway, signals *signal.Hub, opts ...SyncOption) (*Synchronizer, error) {
	if gateway == nil {
		return nil, errors.New("billing: gateway is required")
	}
	s := &Synchronizer{gateway: gateway, signals: signals, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Process records and applies one verified event. The context carries the
// system actor so the audit trail attributes the elevated write correctly.
// Errors returned here are retryable by construction: anything wrong with
// the event itself resolves to a non-error outcome instead.
// RecordMalformed preserves a verified body that failed to parse. The
// receipt is the only durable trace of such a delivery; it never reaches
// the ledger or the mirror, but it can be inspected and replayed. Bodies
// that are not valid JSON are wrapped as a JSON string so the receipt
// store accepts them.
func (s *Synchronizer) RecordMalformed(ctx context.Context, body []byte) error {
	ctx = identity.ContextWithActor(ctx, identity.SystemActor())

	raw := body
	if !json.Valid(raw) {
		enc, err := json.Marshal(string(body))
		if err != nil {
			return err
		}
		raw = enc
	}
	return s.gateway.RecordReceipt(ctx, Event{
		Type:       "malformed",
		OccurredAt: s.now().UTC(),
		Raw:        raw,
	})
}

func (s *Synchronizer) Process(ctx context.Context, ev Event) (Outcome, error) {
	ctx = identity.ContextWithActor(ctx, identity.SystemActor())

	if err := s.gateway.RecordReceipt(ctx, ev); err != nil {
		return "", err
	}

	outcome, err := s.gateway.ApplyEvent(ctx, ev)
	if err != nil {
		return "", Retryable(err)
	}

	if outcome == OutcomeApplied && s.signals != nil && ev.Data.ActorID != "" {
		s.signals.Publish(signal.Reissue{
			ActorID:   ev.Data.ActorID,
			Reason:    ev.Type,
			EmittedAt: s.now().UTC(),
		})
	}
	return outcome, nil
}

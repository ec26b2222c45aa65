package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"rentfold.io/internal/rental"
)

// MemoryStore is the in-process Store. It enforces the same invariants as
// the Postgres layer: ledger insert before effect, duplicate event ids
// leave state untouched, mirror and payment writes lose to later
// occurrence timestamps.
type MemoryStore struct {
	mu       sync.Mutex
	receipts []Event
	ledger   map[string]LedgerEntry
	mirror   map[string]MirrorRecord
	settler  PaymentSettler
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. settler may be nil when no
// payment rows exist to settle.
func NewMemoryStore(settler PaymentSettler) *MemoryStore {
	return &MemoryStore{
		ledger:  make(map[string]LedgerEntry),
		mirror:  make(map[string]MirrorRecord),
		settler: settler,
		now:     time.Now,
	}
}

func (s *MemoryStore) RecordReceipt(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, ev)
	return nil
}

func (s *MemoryStore) ApplyEvent(ctx context.Context, ev Event) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.ledger[ev.ProviderEventID]; seen {
		return OutcomeDuplicate, nil
	}

	outcome, err := s.applyLocked(ctx, ev)
	if err != nil {
		return "", err
	}

	s.ledger[ev.ProviderEventID] = LedgerEntry{
		ProviderEventID: ev.ProviderEventID,
		EventType:       ev.Type,
		OccurredAt:      ev.OccurredAt,
		ProcessedAt:     s.now().UTC(),
	}
	return outcome, nil
}

func (s *MemoryStore) applyLocked(ctx context.Context, ev Event) (Outcome, error) {
	if status, ok := SubscriptionStatusFor(ev); ok {
		if ev.Data.ActorID == "" {
			return OutcomeIgnored, nil
		}
		cur, exists := s.mirror[ev.Data.ActorID]
		if exists && !ev.OccurredAt.After(cur.EventOccurredAt) {
			return OutcomeStale, nil
		}
		s.mirror[ev.Data.ActorID] = MirrorRecord{
			ActorID:            ev.Data.ActorID,
			ProviderAccountID:  ev.Data.ProviderAccountID,
			SubscriptionStatus: status,
			EventOccurredAt:    ev.OccurredAt,
			UpdatedAt:          s.now().UTC(),
		}
		return OutcomeApplied, nil
	}

	switch ev.Type {
	case EventPaymentSettled, EventPaymentFailed:
		if s.settler == nil || ev.Data.ProviderPaymentID == "" {
			return OutcomeIgnored, nil
		}
		status := rental.PaymentStatusSettled
		if ev.Type == EventPaymentFailed {
			status = rental.PaymentStatusFailed
		}
		err := s.settler.SettlePayment(ctx, ev.Data.ProviderPaymentID, status, ev.OccurredAt)
		if errors.Is(err, rental.ErrStale) {
			return OutcomeStale, nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, rental.ErrNotFound) {
			// No local payment row references this provider payment.
			// Keep the ledger entry so a replay is still a duplicate.
			return OutcomeIgnored, nil
		}
		if err != nil {
			return "", err
		}
		return OutcomeApplied, nil
	}

	return OutcomeIgnored, nil
}

func (s *MemoryStore) Snapshot(ctx context.Context, actorID string) (MirrorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.mirror[actorID]
	if !ok {
		return MirrorRecord{}, ErrNotFound
	}
	return rec, nil
}

// ReceiptCount reports recorded receipts, for tests.
func (s *MemoryStore) ReceiptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receipts)
}

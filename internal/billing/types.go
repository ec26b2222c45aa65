package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event types emitted by the billing provider. Unknown types are recorded
// and acknowledged but never mutate local state.
const (
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionUpdated   = "subscription.updated"
	EventSubscriptionCanceled  = "subscription.canceled"
	EventPaymentSettled        = "payment.settled"
	EventPaymentFailed         = "payment.failed"
)

// Subscription statuses mirrored locally.
const (
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// Outcome of applying one event against the ledger and mirror.
type Outcome string

const (
	// OutcomeApplied means the event mutated the mirror or a payment row.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate means the ledger already holds this provider event
	// id; nothing was mutated.
	OutcomeDuplicate Outcome = "duplicate_ignored"
	// OutcomeStale means the event was recorded but an event with a later
	// occurrence timestamp already won the mirror slot.
	OutcomeStale Outcome = "stale_ignored"
	// OutcomeIgnored means the event type carries no local effect.
	OutcomeIgnored Outcome = "ignored"
)

var (
	ErrMalformedEvent = errors.New("billing: malformed event")
	ErrNotFound       = errors.New("billing: not found")
)

// RetryableError marks a failure the provider should redeliver for:
// storage unavailability rather than a property of the event itself.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return fmt.Sprintf("billing: retryable: %v", e.Err) }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err so the ingestion surface answers with a retry status.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err asks for provider redelivery.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// EventData is the provider payload attached to an event.
type EventData struct {
	ActorID            string `json:"actor_id"`
	ProviderAccountID  string `json:"provider_account_id"`
	SubscriptionStatus string `json:"subscription_status,omitempty"`
	ProviderPaymentID  string `json:"provider_payment_id,omitempty"`
	AmountCents        int64  `json:"amount_cents,omitempty"`
}

// Event is one verified billing-provider notification.
type Event struct {
	ProviderEventID string    `json:"id"`
	Type            string    `json:"type"`
	OccurredAt      time.Time `json:"occurred_at"`
	Data            EventData `json:"data"`

	// Raw is the verified request body, retained for the receipt ledger.
	Raw json.RawMessage `json:"-"`
}

// ParseEvent decodes a verified webhook body. Providers version their
// payloads, so unknown fields pass through; missing identifiers do not.
func ParseEvent(body []byte) (Event, error) {
	var ev Event
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ev.ProviderEventID = strings.TrimSpace(ev.ProviderEventID)
	ev.Type = strings.TrimSpace(ev.Type)
	if ev.ProviderEventID == "" {
		return Event{}, fmt.Errorf("%w: missing event id", ErrMalformedEvent)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("%w: missing event type", ErrMalformedEvent)
	}
	if ev.OccurredAt.IsZero() {
		return Event{}, fmt.Errorf("%w: missing occurred_at", ErrMalformedEvent)
	}
	ev.Raw = append(json.RawMessage(nil), body...)
	return ev, nil
}

// SubscriptionStatusFor maps an event type to the mirrored status it
// implies, when any.
func SubscriptionStatusFor(ev Event) (string, bool) {
	switch ev.Type {
	case EventSubscriptionActivated:
		return StatusActive, true
	case EventSubscriptionUpdated:
		status := strings.TrimSpace(ev.Data.SubscriptionStatus)
		if status == "" {
			return "", false
		}
		return status, true
	case EventSubscriptionCanceled:
		return StatusCanceled, true
	}
	return "", false
}

// MirrorRecord is the locally mirrored billing state for one actor. Only
// the event synchronizer writes it; credential enrichment reads it.
type MirrorRecord struct {
	ActorID            string    `json:"actor_id"`
	ProviderAccountID  string    `json:"provider_account_id"`
	SubscriptionStatus string    `json:"subscription_status"`
	EventOccurredAt    time.Time `json:"event_occurred_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// LedgerEntry is one processed provider event. The unique provider event
// id on this ledger is the sole deduplication mechanism.
type LedgerEntry struct {
	ProviderEventID string    `json:"provider_event_id"`
	EventType       string    `json:"event_type"`
	OccurredAt      time.Time `json:"occurred_at"`
	ProcessedAt     time.Time `json:"processed_at"`
}

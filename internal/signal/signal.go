package signal

import (
	"context"
	"sync"
	"time"
)

// Reissue is an advisory notice that an actor's billing-relevant facts
// changed and their next credential refresh should re-enrich. Correctness
// never depends on delivery; the bounded credential TTL does the real work.
type Reissue struct {
	ActorID   string    `json:"actor_id"`
	Reason    string    `json:"reason"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Hub fan-outs re-issuance signals to subscribers and keeps a pending set
// that the credential issuer drains at refresh time.
type Hub struct {
	mu      sync.RWMutex
	pending map[string]Reissue
	subs    map[int]chan Reissue
	next    int
}

// NewHub initialises an empty hub.
func NewHub() *Hub {
	return &Hub{
		pending: make(map[string]Reissue),
		subs:    make(map[int]chan Reissue),
	}
}

// Publish records the signal as pending for the actor and fan-outs it to
// all subscribers. Later signals for the same actor replace earlier ones.
func (h *Hub) Publish(sig Reissue) {
	if sig.ActorID == "" {
		return
	}
	if sig.EmittedAt.IsZero() {
		sig.EmittedAt = time.Now().UTC()
	}

	h.mu.Lock()
	h.pending[sig.ActorID] = sig
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- sig:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Consume removes and returns the pending signal for the actor, if any.
func (h *Hub) Consume(actorID string) (Reissue, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sig, ok := h.pending[actorID]
	if ok {
		delete(h.pending, actorID)
	}
	return sig, ok
}

// Subscribe registers a subscriber and returns a channel receiving signals.
// The channel is closed when the provided context ends.
func (h *Hub) Subscribe(ctx context.Context) <-chan Reissue {
	ch := make(chan Reissue, 16)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

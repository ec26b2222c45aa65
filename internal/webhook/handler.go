package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"rentfold.io/internal/audit"
	"rentfold.io/internal/billing"
	"rentfold.io/internal/obs"
)

// maxBodyBytes bounds webhook payload size.
const maxBodyBytes = 256 << 10

// processTimeout bounds the storage work done per delivery so the provider
// gets an answer inside its own delivery timeout.
const processTimeout = 10 * time.Second

// Handler is the billing webhook ingestion endpoint. It verifies the
// provider signature before reading anything else, then hands verified
// events to the synchronizer. Response codes steer provider redelivery:
// 2xx acknowledges, 5xx asks for a retry.
type Handler struct {
	verifier *Verifier
	sync     *billing.Synchronizer
}

// NewHandler constructs the endpoint.
func NewHandler(verifier *Verifier, sync *billing.Synchronizer) *Handler {
	return &Handler{verifier: verifier, sync: sync}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		respond(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respond(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
		return
	}

	if err := h.verifier.Verify(r.Header.Get(SignatureHeader), body); err != nil {
		obs.CountWebhookEvent("unknown", "rejected_signature")
		audit.LogEvent(r.Context(), "webhook.rejected", map[string]any{
			"reason": err.Error(),
		})
		respond(w, http.StatusBadRequest, map[string]string{"error": "signature verification failed"})
		return
	}

	ev, err := billing.ParseEvent(body)
	if err != nil {
		// Authenticated but unparseable: record the receipt so the body
		// stays auditable, then acknowledge so the provider does not
		// redeliver something that will never parse.
		if recErr := h.sync.RecordMalformed(r.Context(), body); recErr != nil {
			obs.CountWebhookEvent("unknown", "retry")
			respond(w, http.StatusServiceUnavailable, map[string]string{"error": "temporarily unavailable"})
			return
		}
		obs.CountWebhookEvent("unknown", "malformed")
		audit.LogEvent(r.Context(), "webhook.malformed", map[string]any{
			"error": err.Error(),
		})
		respond(w, http.StatusOK, map[string]string{"status": "acknowledged", "note": "malformed payload"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), processTimeout)
	defer cancel()

	outcome, err := h.sync.Process(ctx, ev)
	if err != nil {
		obs.CountWebhookEvent(ev.Type, "retry")
		respond(w, http.StatusServiceUnavailable, map[string]string{"error": "temporarily unavailable"})
		return
	}

	obs.CountWebhookEvent(ev.Type, string(outcome))
	respond(w, http.StatusOK, map[string]string{
		"status":  "acknowledged",
		"outcome": string(outcome),
	})
}

func respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && !errors.Is(err, http.ErrBodyNotAllowed) {
		obs.Logger().Printf(`{"level":"error","msg":"webhook response encode failed","error":%q}`, err.Error())
	}
}

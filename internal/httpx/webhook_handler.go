package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-commerce.git/internal/payments"
)

type Reconciler interface {
	HandleEvent(ctx context.Context, ev payments.GatewayEvent) (payments.Outcome, error)
}

// WebhookHandler menerima callback asinkron payment gateway.
// Endpoint ini TIDAK di belakang auth user; gateway yang memanggil.
type WebhookHandler struct {
	Recon Reconciler
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhooks/payment", h.payment)
}

func (h *WebhookHandler) payment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var ev payments.GatewayEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Recon.HandleEvent(ctx, ev)
	if err != nil {
		// kegagalan I/O; gateway akan retry, event idempoten
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// Selalu 200 untuk outcome terminal, termasuk unmatched/duplicate,
	// supaya gateway berhenti retry; anomali sudah ter-log.
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(out)})
}

package httpx

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/jiastore/storefront/internal/settlement"
)

type EventVerifier interface {
	Verify(payload []byte, sigHeader string) (settlement.Event, error)
}

type EventHandler interface {
	Handle(ctx context.Context, ev settlement.Event) error
}

// WebhookHandler receives raw gateway notifications. Signature failures are
// 400 with no side effects; settlement errors are 500 so the gateway's
// retry policy redelivers.
type WebhookHandler struct {
	Verifier   EventVerifier
	Settlement EventHandler
	Log        zerolog.Logger
}

const maxWebhookBody = 1 << 16 // matches the gateway's own payload cap

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/api/webhook", h.handle)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing signature header"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	ev, err := h.Verifier.Verify(payload, sig)
	if err != nil {
		h.Log.Warn().Err(err).Msg("webhook rejected")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "signature verification failed"})
		return
	}

	if err := h.Settlement.Handle(r.Context(), ev); err != nil {
		h.Log.Error().Err(err).Str("event_id", ev.ID).Str("type", ev.Type).Msg("webhook handling failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "webhook handler error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

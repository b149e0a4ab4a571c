package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jiastore/storefront/internal/checkout"
	"github.com/jiastore/storefront/internal/orders"
)

type CheckoutService interface {
	CreateCheckout(ctx context.Context, userID string, items []orders.ItemInput) (string, error)
}

type CheckoutHandler struct {
	Svc CheckoutService
}

type createSessionReq struct {
	Items []orders.ItemInput `json:"items"`
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.With(TrustedIdentity).Post("/api/checkout/session", h.createSession)
}

func (h *CheckoutHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionReq
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := ""
	if id, ok := IdentityFrom(ctx); ok {
		userID = id.UserID
	}

	url, err := h.Svc.CreateCheckout(ctx, userID, req.Items)
	if err != nil {
		writeJSON(w, failureStatus(err), map[string]string{"error": failureReason(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func failureStatus(err error) int {
	var f *checkout.Failure
	if !errors.As(err, &f) {
		return http.StatusInternalServerError
	}
	switch f.Kind {
	case checkout.FailValidation:
		return http.StatusBadRequest
	case checkout.FailOutOfStock:
		return http.StatusConflict
	case checkout.FailSessionCreate:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func failureReason(err error) string {
	var f *checkout.Failure
	if errors.As(err, &f) && f.Kind != checkout.FailInternal {
		return f.Reason
	}
	return "internal error"
}

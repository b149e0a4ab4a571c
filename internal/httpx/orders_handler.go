package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/jiastore/storefront/internal/orders"
	"github.com/jiastore/storefront/internal/redisx"
)

type OrderReader interface {
	ListProducts(ctx context.Context) ([]orders.Product, error)
	ListOrders(ctx context.Context, userID string) ([]orders.Order, error)
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
}

type OrdersHandler struct {
	Repo  OrderReader
	Redis *redis.Client
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Get("/api/products", h.listProducts)
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(TrustedIdentity, RequireIdentity)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/status", h.getOrderStatus)
	})
}

type productResp struct {
	ID          string `json:"id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int    `json:"price_cents"`
	Available   int    `json:"available"`
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Repo.ListProducts(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	out := make([]productResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, productResp{
			ID: p.ID, SKU: p.SKU, Name: p.Name, Description: p.Description,
			PriceCents: p.PriceCents, Available: p.Available(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type orderLineResp struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int    `json:"price_cents"`
}

type orderResp struct {
	ID         string          `json:"id"`
	Lines      []orderLineResp `json:"lines"`
	TotalCents int             `json:"total_cents"`
	Currency   string          `json:"currency"`
	Status     orders.Status   `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`

	// admin only
	UserID            string `json:"user_id,omitempty"`
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
	PaymentIntentID   string `json:"payment_intent_id,omitempty"`
}

func shapeOrder(o *orders.Order, id Identity) orderResp {
	resp := orderResp{
		ID:         o.ID,
		Lines:      make([]orderLineResp, 0, len(o.Lines)),
		TotalCents: o.TotalCents,
		Currency:   o.Currency,
		Status:     o.Status,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, orderLineResp{
			ProductID: l.ProductID, Quantity: l.Qty, PriceCents: l.PriceCents,
		})
	}
	if id.IsAdmin() {
		resp.UserID = o.UserID
		resp.CheckoutSessionID = o.CheckoutSessionID
		resp.PaymentIntentID = o.PaymentIntentID
	}
	return resp
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id, _ := IdentityFrom(ctx)
	userID := id.UserID
	if id.IsAdmin() {
		userID = "" // all orders
	}
	os, err := h.Repo.ListOrders(ctx, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	out := make([]orderResp, 0, len(os))
	for i := range os {
		out = append(out, shapeOrder(&os[i], id))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id, _ := IdentityFrom(ctx)
	o, err := h.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if !id.IsAdmin() && o.UserID != id.UserID {
		// hide existence from other customers
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, shapeOrder(o, id))
}

func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id, _ := IdentityFrom(ctx)

	// Fast path: the cached entry carries the owner id, so ownership is
	// enforced without touching the database.
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			var cached redisx.OrderStatus
			if json.Unmarshal([]byte(s), &cached) == nil && cached.Status != "" {
				if !id.IsAdmin() && cached.UserID != id.UserID {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"status": cached.Status})
				return
			}
		}
	}

	o, err := h.Repo.GetOrder(ctx, orderID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if !id.IsAdmin() && o.UserID != id.UserID {
		// same shape as getOrder: hide existence from other customers
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if h.Redis != nil {
		b, _ := json.Marshal(redisx.OrderStatus{Status: string(o.Status), UserID: o.UserID})
		_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(o.Status)})
}

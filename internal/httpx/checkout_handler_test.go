package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jiastore/storefront/internal/checkout"
	"github.com/jiastore/storefront/internal/orders"
)

type fakeCheckout struct {
	url  string
	err  error
	got  []orders.ItemInput
	user string
}

func (f *fakeCheckout) CreateCheckout(_ context.Context, userID string, items []orders.ItemInput) (string, error) {
	f.user = userID
	f.got = items
	return f.url, f.err
}

func postCheckout(t *testing.T, svc *fakeCheckout, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := NewRouter()
	(&CheckoutHandler{Svc: svc}).Register(r)

	req := httptest.NewRequest(http.MethodPost, "/api/checkout/session", strings.NewReader(body))
	req.Header.Set("X-User-Id", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCheckoutReturnsURL(t *testing.T) {
	svc := &fakeCheckout{url: "https://pay.example/cs_1"}
	w := postCheckout(t, svc, `{"items":[{"id":"p1","quantity":2}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "https://pay.example/cs_1") {
		t.Errorf("body = %s", w.Body.String())
	}
	if len(svc.got) != 1 || svc.got[0].ProductID != "p1" || svc.got[0].Qty != 2 {
		t.Errorf("items = %+v", svc.got)
	}
	if svc.user != "u1" {
		t.Errorf("user = %q, want u1", svc.user)
	}
}

func TestCheckoutBadJSON(t *testing.T) {
	w := postCheckout(t, &fakeCheckout{}, `{"items":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", w.Code)
	}
}

func TestCheckoutFailureMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &checkout.Failure{Kind: checkout.FailValidation, Reason: "no items provided"}, http.StatusBadRequest},
		{"out of stock", &checkout.Failure{Kind: checkout.FailOutOfStock, Reason: "Not enough stock for product p1 (quantity 5)", ProductID: "p1", Qty: 5}, http.StatusConflict},
		{"session", &checkout.Failure{Kind: checkout.FailSessionCreate, Reason: "payment session could not be created"}, http.StatusBadGateway},
		{"internal", &checkout.Failure{Kind: checkout.FailInternal, Reason: "internal error"}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postCheckout(t, &fakeCheckout{err: tc.err}, `{"items":[{"id":"p1","quantity":5}]}`)
			if w.Code != tc.code {
				t.Errorf("code = %d, want %d", w.Code, tc.code)
			}
		})
	}
}

func TestCheckoutOutOfStockNamesProduct(t *testing.T) {
	err := &checkout.Failure{Kind: checkout.FailOutOfStock, Reason: "Not enough stock for product p1 (quantity 5)"}
	w := postCheckout(t, &fakeCheckout{err: err}, `{"items":[{"id":"p1","quantity":5}]}`)
	if !strings.Contains(w.Body.String(), "p1") {
		t.Errorf("409 body should name the product: %s", w.Body.String())
	}
}

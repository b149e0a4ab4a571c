package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jiastore/storefront/internal/orders"
)

type fakeOrderReader struct {
	products []orders.Product
	byID     map[string]*orders.Order
	listedAs string // userID passed to ListOrders
}

func (f *fakeOrderReader) ListProducts(context.Context) ([]orders.Product, error) {
	return f.products, nil
}

func (f *fakeOrderReader) ListOrders(_ context.Context, userID string) ([]orders.Order, error) {
	f.listedAs = userID
	out := make([]orders.Order, 0, len(f.byID))
	for _, o := range f.byID {
		if userID == "" || o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderReader) GetOrder(_ context.Context, orderID string) (*orders.Order, error) {
	o, ok := f.byID[orderID]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return o, nil
}

func aliceOrder() *orders.Order {
	now := time.Now().UTC()
	return &orders.Order{
		ID:     "o1",
		UserID: "alice",
		Lines: []orders.OrderLine{
			{ProductID: "p1", Qty: 2, PriceCents: 1999},
		},
		TotalCents:        3998,
		Currency:          "usd",
		Status:            orders.StatusPaid,
		CheckoutSessionID: "cs_1",
		PaymentIntentID:   "pi_1",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func getOrders(t *testing.T, repo *fakeOrderReader, path, userID, role string) *httptest.ResponseRecorder {
	t.Helper()
	r := NewRouter()
	(&OrdersHandler{Repo: repo}).Register(r)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListOrdersRequiresIdentity(t *testing.T) {
	repo := &fakeOrderReader{byID: map[string]*orders.Order{"o1": aliceOrder()}}
	w := getOrders(t, repo, "/api/orders", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("code = %d, want 401", w.Code)
	}
}

func TestListOrdersScopesToCaller(t *testing.T) {
	repo := &fakeOrderReader{byID: map[string]*orders.Order{"o1": aliceOrder()}}
	w := getOrders(t, repo, "/api/orders", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	if repo.listedAs != "alice" {
		t.Errorf("listed as %q, want alice", repo.listedAs)
	}
}

func TestListOrdersAdminSeesAll(t *testing.T) {
	repo := &fakeOrderReader{byID: map[string]*orders.Order{"o1": aliceOrder()}}
	w := getOrders(t, repo, "/api/orders", "root", "admin")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	if repo.listedAs != "" {
		t.Errorf("listed as %q, want unscoped", repo.listedAs)
	}
}

func TestGetOrderShapeByRole(t *testing.T) {
	repo := &fakeOrderReader{byID: map[string]*orders.Order{"o1": aliceOrder()}}

	t.Run("owner sees no internals", func(t *testing.T) {
		w := getOrders(t, repo, "/api/orders/o1", "alice", "")
		if w.Code != http.StatusOK {
			t.Fatalf("code = %d, want 200", w.Code)
		}
		var got map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		for _, k := range []string{"user_id", "checkout_session_id", "payment_intent_id"} {
			if _, ok := got[k]; ok {
				t.Errorf("%s exposed to non-admin", k)
			}
		}
		if got["total_cents"] != float64(3998) {
			t.Errorf("total_cents = %v", got["total_cents"])
		}
	})

	t.Run("admin sees internals", func(t *testing.T) {
		w := getOrders(t, repo, "/api/orders/o1", "root", "admin")
		if w.Code != http.StatusOK {
			t.Fatalf("code = %d, want 200", w.Code)
		}
		var got map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got["user_id"] != "alice" || got["checkout_session_id"] != "cs_1" || got["payment_intent_id"] != "pi_1" {
			t.Errorf("admin shape = %v", got)
		}
	})
}

func TestGetOrderHiddenFromOtherUsers(t *testing.T) {
	repo := &fakeOrderReader{byID: map[string]*orders.Order{"o1": aliceOrder()}}
	w := getOrders(t, repo, "/api/orders/o1", "mallory", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", w.Code)
	}
}

func TestGetOrderUnknownID(t *testing.T) {
	repo := &fakeOrderReader{byID: map[string]*orders.Order{}}
	w := getOrders(t, repo, "/api/orders/nope", "alice", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", w.Code)
	}
}

func TestGetOrderStatusOwnership(t *testing.T) {
	repo := &fakeOrderReader{byID: map[string]*orders.Order{"o1": aliceOrder()}}

	cases := []struct {
		name   string
		userID string
		role   string
		code   int
	}{
		{"owner", "alice", "", http.StatusOK},
		{"admin", "root", "admin", http.StatusOK},
		{"other user", "mallory", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := getOrders(t, repo, "/api/orders/o1/status", tc.userID, tc.role)
			if w.Code != tc.code {
				t.Fatalf("code = %d, want %d", w.Code, tc.code)
			}
			if tc.code != http.StatusOK {
				return
			}
			var got map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got["status"] != "paid" {
				t.Errorf("status = %q, want paid", got["status"])
			}
			if _, ok := got["user_id"]; ok {
				t.Error("status response should not expose user_id")
			}
		})
	}
}

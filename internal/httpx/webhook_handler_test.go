package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jiastore/storefront/internal/settlement"
)

type fakeVerifier struct {
	ev    settlement.Event
	err   error
	calls int
}

func (f *fakeVerifier) Verify(payload []byte, sigHeader string) (settlement.Event, error) {
	f.calls++
	return f.ev, f.err
}

type fakeSettlement struct {
	err error
	got []settlement.Event
}

func (f *fakeSettlement) Handle(_ context.Context, ev settlement.Event) error {
	f.got = append(f.got, ev)
	return f.err
}

func postWebhook(t *testing.T, v *fakeVerifier, s *fakeSettlement, sig string) *httptest.ResponseRecorder {
	t.Helper()
	r := NewRouter()
	(&WebhookHandler{Verifier: v, Settlement: s, Log: zerolog.Nop()}).Register(r)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{"id":"evt_1"}`))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookMissingSignature(t *testing.T) {
	v, s := &fakeVerifier{}, &fakeSettlement{}
	w := postWebhook(t, v, s, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", w.Code)
	}
	if v.calls != 0 || len(s.got) != 0 {
		t.Error("must reject before verification, with no side effects")
	}
}

func TestWebhookInvalidSignature(t *testing.T) {
	v := &fakeVerifier{err: errors.New("bad signature")}
	s := &fakeSettlement{}
	w := postWebhook(t, v, s, "t=1,v1=bogus")
	if w.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", w.Code)
	}
	if len(s.got) != 0 {
		t.Error("unverified event must not reach settlement")
	}
}

func TestWebhookSettlementErrorIs500(t *testing.T) {
	v := &fakeVerifier{ev: settlement.Event{ID: "evt_1", Type: settlement.EventSessionCompleted}}
	s := &fakeSettlement{err: errors.New("commit failed")}
	w := postWebhook(t, v, s, "t=1,v1=ok")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("code = %d, want 500 so the gateway retries", w.Code)
	}
}

func TestWebhookAcknowledged(t *testing.T) {
	v := &fakeVerifier{ev: settlement.Event{ID: "evt_1", Type: "charge.succeeded"}}
	s := &fakeSettlement{}
	w := postWebhook(t, v, s, "t=1,v1=ok")
	if w.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, `"received":true`) {
		t.Errorf("body = %s", body)
	}
	if len(s.got) != 1 {
		t.Errorf("settlement calls = %d, want 1", len(s.got))
	}
}

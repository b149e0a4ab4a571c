package stripegw

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/jiastore/storefront/internal/settlement"
)

// Verifier checks the Stripe-Signature header against the endpoint secret
// and translates the event for the settlement machine. An event that fails
// here must cause a 400 with no side effects.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

func (v *Verifier) Verify(payload []byte, sigHeader string) (settlement.Event, error) {
	ev, err := webhook.ConstructEvent(payload, sigHeader, v.secret)
	if err != nil {
		return settlement.Event{}, fmt.Errorf("verify webhook: %w", err)
	}

	out := settlement.Event{ID: ev.ID, Type: string(ev.Type)}
	switch out.Type {
	case settlement.EventSessionCompleted, settlement.EventSessionExpired:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return settlement.Event{}, fmt.Errorf("decode session event: %w", err)
		}
		out.SessionID = sess.ID
		out.PaymentStatus = string(sess.PaymentStatus)
		if sess.PaymentIntent != nil {
			out.PaymentIntentID = sess.PaymentIntent.ID
		}
	case settlement.EventPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &intent); err != nil {
			return settlement.Event{}, fmt.Errorf("decode payment intent event: %w", err)
		}
		out.PaymentIntentID = intent.ID
	}
	return out, nil
}

package stripegw

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/jiastore/storefront/internal/checkout"
)

// Client wraps the Stripe Checkout Session API behind the checkout.Gateway
// port. The API handle is explicit; nothing touches the package-global key.
type Client struct {
	api *client.API
}

func New(secretKey string) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{api: api}
}

func (c *Client) CreateSession(ctx context.Context, req checkout.SessionRequest) (checkout.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		ClientReferenceID:  stripe.String(req.OrderID),
	}
	params.Context = ctx

	for _, l := range req.Lines {
		priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(string(stripe.CurrencyUSD)),
			UnitAmount: stripe.Int64(int64(l.UnitAmountCents)),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(l.Name),
			},
		}
		if l.Description != "" {
			priceData.ProductData.Description = stripe.String(l.Description)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: priceData,
			Quantity:  stripe.Int64(int64(l.Qty)),
		})
	}

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return checkout.Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	return checkout.Session{ID: sess.ID, URL: sess.URL}, nil
}

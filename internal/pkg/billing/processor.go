package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Processor is the payment processor as seen by the billing service.
type Processor interface {
	// CheckoutLineItemPrices returns the price id of every purchased line item in
	// order. Items without a price yield an empty string.
	CheckoutLineItemPrices(ctx context.Context, sessionID string) ([]string, error)
	CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error)
}

// StripeProcessor talks to the Stripe API.
type StripeProcessor struct {
	api        *client.API
	successURL string
	cancelURL  string
}

// NewStripeProcessor creates a Stripe-backed processor.
func NewStripeProcessor(secretKey, successURL, cancelURL string) *StripeProcessor {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProcessor{
		api:        api,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (p *StripeProcessor) CheckoutLineItemPrices(ctx context.Context, sessionID string) ([]string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("checkout session id is required")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")

	session, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, err
	}
	if session.LineItems == nil {
		return nil, nil
	}

	prices := make([]string, 0, len(session.LineItems.Data))
	for _, item := range session.LineItems.Data {
		if item == nil || item.Price == nil {
			prices = append(prices, "")
			continue
		}
		prices = append(prices, item.Price.ID)
	}
	return prices, nil
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(in.StoreID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.successURL),
		CancelURL:  stripe.String(p.cancelURL),
	}
	if in.Email != "" {
		params.CustomerEmail = stripe.String(in.Email)
	}
	params.Context = ctx

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

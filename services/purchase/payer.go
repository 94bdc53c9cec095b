package purchase

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

//go:generate mockgen -source=payer.go -package purchase -destination payer_mock.go Payer
type Payer interface {
	CreateCustomer(c context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	CreatePaymentIntent(c context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(c context.Context, paymentIntentID string) (*stripe.PaymentIntent, error)
}

type stripePayer struct {
	api *client.API
}

func NewPayer(apiKey string) Payer {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &stripePayer{
		api: api,
	}
}

func (p *stripePayer) CreateCustomer(c context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = c
	customer, err := p.api.Customers.New(params)
	if err != nil {
		return nil, fmt.Errorf("error creating stripe customer: %w", err)
	}
	return customer, nil
}

func (p *stripePayer) CreatePaymentIntent(c context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	params.Context = c
	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("error creating stripe payment intent: %w", err)
	}
	return intent, nil
}

func (p *stripePayer) GetPaymentIntent(c context.Context, paymentIntentID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = c
	intent, err := p.api.PaymentIntents.Get(paymentIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("error fetching stripe payment intent %s: %w", paymentIntentID, err)
	}
	return intent, nil
}

package purchase

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v74"

	"github.com/MarcGrol/coursebackend/lib/mystore"
	"github.com/MarcGrol/coursebackend/lib/myuuid"
)

// FakePayer mimics the payment gateway in memory. Intents stay in requires_payment_method
// until Succeed or Fail is called, like a customer completing the payment form.
type FakePayer struct {
	uuider    myuuid.UUIDer
	customers *mystore.InMemoryStore[stripe.Customer]
	intents   *mystore.InMemoryStore[stripe.PaymentIntent]
}

func NewFakePayer(uuider myuuid.UUIDer) *FakePayer {
	return &FakePayer{
		uuider:    uuider,
		customers: mystore.NewInMemoryStore[stripe.Customer](context.Background()),
		intents:   mystore.NewInMemoryStore[stripe.PaymentIntent](context.Background()),
	}
}

func (p *FakePayer) CreateCustomer(c context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	customer := stripe.Customer{
		ID:       "cus_" + p.uuider.Create(),
		Metadata: params.Metadata,
	}
	if params.Email != nil {
		customer.Email = *params.Email
	}
	err := p.customers.Put(c, customer.ID, customer)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (p *FakePayer) CreatePaymentIntent(c context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params.Amount == nil || *params.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if params.Currency == nil {
		return nil, fmt.Errorf("currency is required")
	}
	intent := stripe.PaymentIntent{
		ID:       "pi_" + p.uuider.Create(),
		Amount:   *params.Amount,
		Currency: stripe.Currency(*params.Currency),
		Status:   stripe.PaymentIntentStatusRequiresPaymentMethod,
		Metadata: params.Metadata,
	}
	intent.ClientSecret = intent.ID + "_secret"
	if params.Customer != nil {
		customer, found, err := p.customers.Get(c, *params.Customer)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("no such customer: %s", *params.Customer)
		}
		intent.Customer = &customer
	}
	err := p.intents.Put(c, intent.ID, intent)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (p *FakePayer) GetPaymentIntent(c context.Context, paymentIntentID string) (*stripe.PaymentIntent, error) {
	intent, found, err := p.intents.Get(c, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("no such payment_intent: %s", paymentIntentID)
	}
	return &intent, nil
}

func (p *FakePayer) Succeed(c context.Context, paymentIntentID string) error {
	return p.setStatus(c, paymentIntentID, stripe.PaymentIntentStatusSucceeded)
}

func (p *FakePayer) Fail(c context.Context, paymentIntentID string) error {
	return p.setStatus(c, paymentIntentID, stripe.PaymentIntentStatusRequiresPaymentMethod)
}

func (p *FakePayer) setStatus(c context.Context, paymentIntentID string, status stripe.PaymentIntentStatus) error {
	intent, found, err := p.intents.Get(c, paymentIntentID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no such payment_intent: %s", paymentIntentID)
	}
	intent.Status = status
	return p.intents.Put(c, paymentIntentID, intent)
}

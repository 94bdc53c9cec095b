package purchase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/MarcGrol/coursebackend/lib/myerrors"
	"github.com/MarcGrol/coursebackend/lib/mylog"
)

func (s *service) parseWebhookEvent(payload []byte, signature string) (stripe.Event, error) {
	event := stripe.Event{}
	if s.cfg.WebhookSecret == "" {
		err := json.Unmarshal(payload, &event)
		if err != nil {
			return stripe.Event{}, myerrors.NewInvalidInputError(fmt.Errorf("error parsing webhook event: %w", err))
		}
		return event, nil
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, myerrors.NewAuthenticationError(fmt.Errorf("error verifying webhook signature: %w", err))
	}
	return event, nil
}

func (s *service) webhookNotification(c context.Context, payload []byte, signature string) error {
	if s.mockMode() {
		s.logger.Log(c, "", mylog.SeverityWarn, "Payment gateway not configured: ignoring webhook")
		return nil
	}

	err := s.checkConfigured()
	if err != nil {
		return err
	}

	event, err := s.parseWebhookEvent(payload, signature)
	if err != nil {
		return err
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
	default:
		s.logger.Log(c, event.ID, mylog.SeverityInfo, "Ignoring webhook event %s of type %s", event.ID, event.Type)
		return nil
	}

	if event.Data == nil {
		return myerrors.NewInvalidInputErrorf("webhook event %s has no data", event.ID)
	}
	intent := stripe.PaymentIntent{}
	err = json.Unmarshal(event.Data.Raw, &intent)
	if err != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("error parsing payment intent of event %s: %w", event.ID, err))
	}

	s.logger.Log(c, intent.ID, mylog.SeverityInfo, "Webhook event %s: %s for %s", event.ID, event.Type, intent.ID)

	// the event only triggers a check: status and metadata come from the gateway
	current, known, err := s.knownPaymentIntent(c, intent.ID)
	if err != nil {
		return err
	}
	if !known {
		s.logger.Log(c, intent.ID, mylog.SeverityWarn, "Ignoring webhook event %s: no payment records for %s", event.ID, intent.ID)
		return nil
	}

	if event.Type == "payment_intent.payment_failed" {
		if current.Status == stripe.PaymentIntentStatusSucceeded {
			s.logger.Log(c, intent.ID, mylog.SeverityWarn, "Ignoring webhook event %s: %s has succeeded", event.ID, intent.ID)
			return nil
		}
		return s.failPayment(c, intent.ID)
	}

	if current.Status != stripe.PaymentIntentStatusSucceeded {
		s.logger.Log(c, intent.ID, mylog.SeverityWarn, "Ignoring webhook event %s: %s has status %s", event.ID, intent.ID, current.Status)
		return nil
	}
	_, err = s.completePurchase(c, current)
	return err
}

// knownPaymentIntent fetches an intent from the gateway, provided this service created it.
func (s *service) knownPaymentIntent(c context.Context, paymentIntentID string) (*stripe.PaymentIntent, bool, error) {
	if paymentIntentID == "" {
		return nil, false, nil
	}
	records, err := s.paymentRecordsOf(c, paymentIntentID)
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	intent, err := s.payer.GetPaymentIntent(c, paymentIntentID)
	if err != nil {
		return nil, false, myerrors.NewInternalError(err)
	}
	return intent, true, nil
}

package purchaseevents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/MarcGrol/coursebackend/lib/myerrors"
	"github.com/MarcGrol/coursebackend/lib/myevents"
)

const (
	TopicName             = "purchase"
	purchaseCompletedName = TopicName + ".completed"
)

type PurchaseEventService interface {
	Subscribe(c context.Context) error
	OnPurchaseCompleted(c context.Context, topic string, event PurchaseCompleted) error
}

func DispatchEvent(c context.Context, reader io.Reader, service PurchaseEventService) error {
	envelope, err := myevents.ParseEventEnvelope(reader)
	if err != nil {
		return myerrors.NewInvalidInputError(err)
	}

	switch envelope.EventTypeName {
	case purchaseCompletedName:
		event := PurchaseCompleted{}
		err := json.Unmarshal([]byte(envelope.EventPayload), &event)
		if err != nil {
			return myerrors.NewInvalidInputError(err)
		}
		return service.OnPurchaseCompleted(c, envelope.Topic, event)
	default:
		return myerrors.NewNotImplementedError(fmt.Errorf("unsupported event type %s", envelope.EventTypeName))
	}
}

// PurchaseCompleted is emitted once per payment intent, when its invoice is issued.
type PurchaseCompleted struct {
	PaymentIntentID string
	UserUID         string
	CourseUIDs      []string
	InvoiceNumber   string
	AmountInCents   int64
	TaxInCents      int64
	TotalInCents    int64
	Currency        string
}

func (e PurchaseCompleted) GetEventTypeName() string {
	return purchaseCompletedName
}

func (e PurchaseCompleted) GetAggregateName() string {
	return e.PaymentIntentID
}

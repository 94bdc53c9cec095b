package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarcGrol/coursebackend/lib/myerrors"
	"github.com/MarcGrol/coursebackend/lib/mylog"
	"github.com/MarcGrol/coursebackend/lib/mymailer"
	"github.com/MarcGrol/coursebackend/lib/mypubsub"
	"github.com/MarcGrol/coursebackend/lib/mystore"
	"github.com/MarcGrol/coursebackend/services/catalogapi"
	"github.com/MarcGrol/coursebackend/services/purchase/purchaseevents"
)

const eventPath = "/api/purchase/event"

type service struct {
	logger  mylog.Logger
	baseURL string
	pubsub  mypubsub.PubSub
	courses mystore.Store[catalogapi.Course]
	users   mystore.Store[catalogapi.User]
	mailer  mymailer.Sender
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(logger mylog.Logger, baseURL string, pubsub mypubsub.PubSub, courses mystore.Store[catalogapi.Course], users mystore.Store[catalogapi.User], mailer mymailer.Sender) *service {
	return &service{
		logger:  logger,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		pubsub:  pubsub,
		courses: courses,
		users:   users,
		mailer:  mailer,
	}
}

func (s *service) Subscribe(c context.Context) error {
	err := s.pubsub.Subscribe(c, purchaseevents.TopicName, s.baseURL+eventPath)
	if err != nil {
		return fmt.Errorf("error subscribing to topic %s: %s", purchaseevents.TopicName, err)
	}
	return nil
}

func (s *service) OnPurchaseCompleted(c context.Context, topic string, event purchaseevents.PurchaseCompleted) error {
	user, found, err := s.users.Get(c, event.UserUID)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error fetching user %s: %w", event.UserUID, err))
	}
	if !found || user.Email == "" {
		s.logger.Log(c, event.PaymentIntentID, mylog.SeverityWarn, "No email address for user %s: invoice %s not sent", event.UserUID, event.InvoiceNumber)
		return nil
	}

	subject := fmt.Sprintf("Your invoice %s", event.InvoiceNumber)
	err = s.mailer.Send(c, user.Email, subject, s.composeInvoiceMail(c, user, event))
	if err != nil {
		return myerrors.NewInternalError(err)
	}

	s.logger.Log(c, event.PaymentIntentID, mylog.SeverityInfo, "Sent invoice %s to user %s", event.InvoiceNumber, event.UserUID)

	return nil
}

func (s *service) composeInvoiceMail(c context.Context, user catalogapi.User, event purchaseevents.PurchaseCompleted) string {
	sb := strings.Builder{}

	name := user.FullName
	if name == "" {
		name = user.Email
	}
	fmt.Fprintf(&sb, "Hi %s,\n\n", name)
	fmt.Fprintf(&sb, "Thank you for your purchase. You now have access to:\n\n")
	for _, courseUID := range event.CourseUIDs {
		fmt.Fprintf(&sb, "- %s\n", s.courseTitle(c, courseUID))
	}
	fmt.Fprintf(&sb, "\nInvoice: %s\n", event.InvoiceNumber)
	fmt.Fprintf(&sb, "Amount:  %s\n", formatAmount(event.AmountInCents, event.Currency))
	fmt.Fprintf(&sb, "Tax:     %s\n", formatAmount(event.TaxInCents, event.Currency))
	fmt.Fprintf(&sb, "Total:   %s\n", formatAmount(event.TotalInCents, event.Currency))

	return sb.String()
}

func (s *service) courseTitle(c context.Context, courseUID string) string {
	course, found, err := s.courses.Get(c, courseUID)
	if err != nil || !found || course.Title == "" {
		return courseUID
	}
	return course.Title
}

func formatAmount(amountInCents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", amountInCents/100, amountInCents%100, strings.ToUpper(currency))
}

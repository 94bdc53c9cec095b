package purchase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stripe/stripe-go/v74"

	"github.com/MarcGrol/coursebackend/lib/myerrors"
	"github.com/MarcGrol/coursebackend/lib/mylog"
	"github.com/MarcGrol/coursebackend/lib/mymetrics"
	"github.com/MarcGrol/coursebackend/lib/mystore"
	"github.com/MarcGrol/coursebackend/services/catalogapi"
	"github.com/MarcGrol/coursebackend/services/enrollmentapi"
	"github.com/MarcGrol/coursebackend/services/purchase/purchaseevents"
)

const (
	metadataUserUID    = "user_id"
	metadataCourseUIDs = "course_ids"
)

func mockIntentResponse() IntentResponse {
	return IntentResponse{
		ClientSecret: "mock_client_secret",
		Amount:       0,
		Currency:     "usd",
		Status:       "requires_payment_method",
		Mock:         true,
	}
}

func (s *service) createPaymentIntent(c context.Context, userUID string, courseUIDs []string) (IntentResponse, error) {
	if s.mockMode() {
		s.logger.Log(c, userUID, mylog.SeverityWarn, "Payment gateway not configured: returning mock payment intent")
		mymetrics.PaymentIntentsCreated.WithLabelValues("mock").Inc()
		return mockIntentResponse(), nil
	}

	err := s.checkConfigured()
	if err != nil {
		return IntentResponse{}, err
	}

	err = validateSelection(userUID, courseUIDs)
	if err != nil {
		return IntentResponse{}, err
	}

	courses, err := s.lookupCourses(c, courseUIDs)
	if err != nil {
		return IntentResponse{}, err
	}

	total := 0.0
	for _, course := range courses {
		total += course.Price
	}
	amount := catalogapi.ToMinorUnits(total)

	s.logger.Log(c, userUID, mylog.SeverityInfo, "Create payment intent for user %s: %d courses, %d %s", userUID, len(courses), amount, s.cfg.Currency)

	customerID, err := s.ensureCustomer(c, userUID)
	if err != nil {
		return IntentResponse{}, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(s.cfg.Currency),
		Customer: stripe.String(customerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Metadata = map[string]string{
		metadataUserUID:    userUID,
		metadataCourseUIDs: strings.Join(courseUIDs, ","),
	}
	intent, err := s.payer.CreatePaymentIntent(c, params)
	if err != nil {
		return IntentResponse{}, myerrors.NewInternalError(err)
	}

	now := s.nower.Now()
	err = s.stores.Payments.RunInTransaction(c, func(c context.Context) error {
		for _, course := range courses {
			record := PaymentRecord{
				UID:             paymentRecordUID(intent.ID, course.UID),
				UserUID:         userUID,
				CourseUID:       course.UID,
				PaymentIntentID: intent.ID,
				CustomerID:      customerID,
				AmountInCents:   course.PriceInCents(),
				Currency:        s.cfg.Currency,
				Status:          PaymentStatusPending,
				CreatedAt:       now,
			}
			err := s.stores.Payments.Put(c, record.UID, record)
			if err != nil {
				return myerrors.NewInternalError(fmt.Errorf("error storing payment record %s: %w", record.UID, err))
			}
		}
		return nil
	})
	if err != nil {
		return IntentResponse{}, err
	}

	mymetrics.PaymentIntentsCreated.WithLabelValues("gateway").Inc()

	return IntentResponse{
		ClientSecret:    intent.ClientSecret,
		Amount:          amount,
		Currency:        s.cfg.Currency,
		PaymentIntentID: intent.ID,
	}, nil
}

func validateSelection(userUID string, courseUIDs []string) error {
	if userUID == "" {
		return myerrors.NewInvalidInputErrorf("user_id is required")
	}
	if len(courseUIDs) == 0 {
		return myerrors.NewInvalidInputErrorf("no courses selected")
	}
	seen := map[string]bool{}
	for _, courseUID := range courseUIDs {
		if courseUID == "" {
			return myerrors.NewInvalidInputErrorf("empty course id")
		}
		// course ids travel comma-separated in the intent metadata
		if strings.Contains(courseUID, ",") {
			return myerrors.NewInvalidInputErrorf("invalid course id %q", courseUID)
		}
		if seen[courseUID] {
			return myerrors.NewInvalidInputErrorf("course %s selected more than once", courseUID)
		}
		seen[courseUID] = true
	}
	return nil
}

func (s *service) lookupCourses(c context.Context, courseUIDs []string) ([]catalogapi.Course, error) {
	courses := make([]catalogapi.Course, 0, len(courseUIDs))
	for _, courseUID := range courseUIDs {
		course, found, err := s.stores.Courses.Get(c, courseUID)
		if err != nil {
			return nil, myerrors.NewInternalError(fmt.Errorf("error fetching course %s: %w", courseUID, err))
		}
		if !found {
			return nil, myerrors.NewInvalidInputErrorf("course %s not found", courseUID)
		}
		course.UID = courseUID
		courses = append(courses, course)
	}
	return courses, nil
}

// ensureCustomer returns the gateway customer of the user, creating and remembering one when needed.
func (s *service) ensureCustomer(c context.Context, userUID string) (string, error) {
	user, found, err := s.stores.Users.Get(c, userUID)
	if err != nil {
		return "", myerrors.NewInternalError(fmt.Errorf("error fetching user %s: %w", userUID, err))
	}
	if found && user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{}
	params.Metadata = map[string]string{
		metadataUserUID: userUID,
	}
	if found && user.Email != "" {
		params.Email = stripe.String(user.Email)
	}
	customer, err := s.payer.CreateCustomer(c, params)
	if err != nil {
		return "", myerrors.NewInternalError(err)
	}

	if found {
		now := s.nower.Now()
		user.StripeCustomerID = customer.ID
		user.LastModified = &now
		err = s.stores.Users.Put(c, userUID, user)
		if err != nil {
			return "", myerrors.NewInternalError(fmt.Errorf("error storing customer id of user %s: %w", userUID, err))
		}
	}

	s.logger.Log(c, userUID, mylog.SeverityInfo, "Created customer %s for user %s", customer.ID, userUID)

	return customer.ID, nil
}

func (s *service) confirmPayment(c context.Context, paymentIntentID string) (ConfirmResponse, error) {
	if s.mockMode() {
		s.logger.Log(c, paymentIntentID, mylog.SeverityWarn, "Payment gateway not configured: mock confirmation")
		mymetrics.PaymentConfirmations.WithLabelValues("mock").Inc()
		return ConfirmResponse{
			Success: true,
			Mock:    true,
			Message: "Payment confirmed (mock)",
		}, nil
	}

	err := s.checkConfigured()
	if err != nil {
		return ConfirmResponse{}, err
	}
	if paymentIntentID == "" {
		return ConfirmResponse{}, myerrors.NewInvalidInputErrorf("payment_intent_id is required")
	}

	intent, err := s.payer.GetPaymentIntent(c, paymentIntentID)
	if err != nil {
		return ConfirmResponse{}, myerrors.NewInternalError(err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		mymetrics.PaymentConfirmations.WithLabelValues("rejected").Inc()
		return ConfirmResponse{}, myerrors.NewInvalidInputErrorf("Payment not successful. Status: %s", intent.Status)
	}

	invoice, err := s.completePurchase(c, intent)
	if err != nil {
		mymetrics.PaymentConfirmations.WithLabelValues("failed").Inc()
		return ConfirmResponse{}, err
	}

	mymetrics.PaymentConfirmations.WithLabelValues("succeeded").Inc()

	return ConfirmResponse{
		Success: true,
		Message: "Payment confirmed and courses unlocked",
		Invoice: invoice,
	}, nil
}

func splitCourseUIDs(joined string) []string {
	courseUIDs := []string{}
	for _, courseUID := range strings.Split(joined, ",") {
		courseUID = strings.TrimSpace(courseUID)
		if courseUID != "" {
			courseUIDs = append(courseUIDs, courseUID)
		}
	}
	return courseUIDs
}

// completePurchase grants access to every course of a succeeded intent and issues its invoice.
// All writes happen in one transaction and repeating it for the same intent changes nothing.
func (s *service) completePurchase(c context.Context, intent *stripe.PaymentIntent) (*Invoice, error) {
	userUID := intent.Metadata[metadataUserUID]
	if userUID == "" {
		return nil, myerrors.NewInvalidInputErrorf("payment intent %s has no %s", intent.ID, metadataUserUID)
	}
	courseUIDs := splitCourseUIDs(intent.Metadata[metadataCourseUIDs])

	s.logger.Log(c, intent.ID, mylog.SeverityInfo, "Complete purchase %s for user %s: courses %v", intent.ID, userUID, courseUIDs)

	timer := prometheus.NewTimer(mymetrics.FanOutDuration)
	defer timer.ObserveDuration()

	now := s.nower.Now()
	var invoice *Invoice
	granted := 0
	issued := false
	err := s.stores.Payments.RunInTransaction(c, func(c context.Context) error {
		invoice = nil
		granted = 0
		issued = false

		err := s.markPaymentRecords(c, intent.ID, PaymentStatusSucceeded, now)
		if err != nil {
			return err
		}

		for _, courseUID := range courseUIDs {
			newlyGranted, err := s.grantAccess(c, userUID, courseUID, intent.ID, now)
			if err != nil {
				return err
			}
			if newlyGranted {
				granted++
			}
		}

		err = s.clearCart(c, userUID)
		if err != nil {
			return err
		}

		inv, created, err := s.generateInvoice(c, intent.ID, userUID, now)
		if err != nil {
			return err
		}
		if inv.UID != "" {
			invoice = &inv
		}

		if created {
			issued = true
			err = s.publisher.Publish(c, purchaseevents.TopicName, purchaseevents.PurchaseCompleted{
				PaymentIntentID: intent.ID,
				UserUID:         userUID,
				CourseUIDs:      courseUIDs,
				InvoiceNumber:   inv.InvoiceNumber,
				AmountInCents:   inv.AmountInCents,
				TaxInCents:      inv.TaxInCents,
				TotalInCents:    inv.TotalInCents,
				Currency:        inv.Currency,
			})
			if err != nil {
				return myerrors.NewInternalError(fmt.Errorf("error publishing event: %w", err))
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	mymetrics.CoursesUnlocked.Add(float64(granted))
	if issued {
		mymetrics.InvoicesIssued.Inc()
	}

	return invoice, nil
}

func (s *service) markPaymentRecords(c context.Context, paymentIntentID string, status PaymentStatus, now time.Time) error {
	records, err := s.paymentRecordsOf(c, paymentIntentID)
	if err != nil {
		return err
	}
	for _, record := range records {
		if record.Status == status || record.Status == PaymentStatusSucceeded {
			// a succeeded payment is final
			continue
		}
		record.Status = status
		record.LastModified = &now
		err = s.stores.Payments.Put(c, record.UID, record)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error updating payment record %s: %w", record.UID, err))
		}
	}
	return nil
}

func (s *service) paymentRecordsOf(c context.Context, paymentIntentID string) ([]PaymentRecord, error) {
	records, err := s.stores.Payments.Query(c, []mystore.Filter{{Field: "PaymentIntentID", Compare: "=", Value: paymentIntentID}}, "")
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error fetching payment records of %s: %w", paymentIntentID, err))
	}
	return records, nil
}

// grantAccess upserts the purchase and makes sure the user is enrolled. It reports whether the purchase is new.
func (s *service) grantAccess(c context.Context, userUID string, courseUID string, paymentIntentID string, now time.Time) (bool, error) {
	course, found, err := s.stores.Courses.Get(c, courseUID)
	if err != nil {
		return false, myerrors.NewInternalError(fmt.Errorf("error fetching course %s: %w", courseUID, err))
	}
	pricePaid := int64(0)
	if found {
		pricePaid = course.PriceInCents()
	} else {
		s.logger.Log(c, paymentIntentID, mylog.SeverityWarn, "Course %s no longer exists: recording purchase with price 0", courseUID)
	}

	purchaseUID := coursePurchaseUID(userUID, courseUID)
	existing, exists, err := s.stores.Purchases.Get(c, purchaseUID)
	if err != nil {
		return false, myerrors.NewInternalError(fmt.Errorf("error fetching purchase %s: %w", purchaseUID, err))
	}
	if !exists || existing.PaymentIntentID != paymentIntentID {
		accessGrantedAt := now
		if exists {
			accessGrantedAt = existing.AccessGrantedAt
		}
		err = s.stores.Purchases.Put(c, purchaseUID, CoursePurchase{
			UID:              purchaseUID,
			UserUID:          userUID,
			CourseUID:        courseUID,
			PaymentIntentID:  paymentIntentID,
			PricePaidInCents: pricePaid,
			AccessGrantedAt:  accessGrantedAt,
		})
		if err != nil {
			return false, myerrors.NewInternalError(fmt.Errorf("error storing purchase %s: %w", purchaseUID, err))
		}
	}

	enrollmentUID := enrollmentapi.EnrollmentUID(userUID, courseUID)
	_, enrolled, err := s.stores.Enrollments.Get(c, enrollmentUID)
	if err != nil {
		return false, myerrors.NewInternalError(fmt.Errorf("error fetching enrollment %s: %w", enrollmentUID, err))
	}
	if !enrolled {
		err = s.stores.Enrollments.Put(c, enrollmentUID, enrollmentapi.NewEnrollment(userUID, courseUID, now))
		if err != nil {
			return false, myerrors.NewInternalError(fmt.Errorf("error storing enrollment %s: %w", enrollmentUID, err))
		}
	}

	return !exists, nil
}

func (s *service) failPayment(c context.Context, paymentIntentID string) error {
	s.logger.Log(c, paymentIntentID, mylog.SeverityWarn, "Payment %s failed", paymentIntentID)

	now := s.nower.Now()
	return s.stores.Payments.RunInTransaction(c, func(c context.Context) error {
		return s.markPaymentRecords(c, paymentIntentID, PaymentStatusFailed, now)
	})
}

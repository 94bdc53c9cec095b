package purchase

import (
	"context"
	"fmt"

	"github.com/MarcGrol/coursebackend/lib/myerrors"
	"github.com/MarcGrol/coursebackend/lib/mylog"
	"github.com/MarcGrol/coursebackend/lib/mystore"
)

// hasPurchasedCourse never fails: any problem reading the store means no access.
func (s *service) hasPurchasedCourse(c context.Context, userUID string, courseUID string) bool {
	if s.stores.Purchases == nil || userUID == "" || courseUID == "" {
		return false
	}
	_, found, err := s.stores.Purchases.Get(c, coursePurchaseUID(userUID, courseUID))
	if err != nil {
		s.logger.Log(c, userUID, mylog.SeverityWarn, "Error checking access of user %s to course %s: %s", userUID, courseUID, err)
		return false
	}
	return found
}

func (s *service) getPaymentHistory(c context.Context, userUID string) ([]PaymentHistoryEntry, error) {
	err := s.checkConfigured()
	if err != nil {
		return nil, err
	}

	records, err := s.stores.Payments.Query(c, []mystore.Filter{{Field: "UserUID", Compare: "=", Value: userUID}}, "-CreatedAt")
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error fetching payments of user %s: %w", userUID, err))
	}

	entries := make([]PaymentHistoryEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, PaymentHistoryEntry{
			PaymentRecord: r,
			CourseTitle:   s.courseTitle(c, r.CourseUID),
		})
	}
	return entries, nil
}

func (s *service) getInvoices(c context.Context, userUID string) ([]Invoice, error) {
	err := s.checkConfigured()
	if err != nil {
		return nil, err
	}

	invoices, err := s.stores.Invoices.Query(c, []mystore.Filter{{Field: "UserUID", Compare: "=", Value: userUID}}, "-IssuedAt")
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error fetching invoices of user %s: %w", userUID, err))
	}
	return invoices, nil
}

func (s *service) getPurchases(c context.Context, userUID string) ([]PurchaseEntry, error) {
	err := s.checkConfigured()
	if err != nil {
		return nil, err
	}

	purchases, err := s.stores.Purchases.Query(c, []mystore.Filter{{Field: "UserUID", Compare: "=", Value: userUID}}, "-AccessGrantedAt")
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error fetching purchases of user %s: %w", userUID, err))
	}

	entries := make([]PurchaseEntry, 0, len(purchases))
	for _, p := range purchases {
		entries = append(entries, PurchaseEntry{
			CoursePurchase: p,
			CourseTitle:    s.courseTitle(c, p.CourseUID),
		})
	}
	return entries, nil
}

package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/MarcGrol/coursebackend/lib/myerrors"
	"github.com/MarcGrol/coursebackend/lib/mylog"
)

const taxPercentage = 10

// computeTax returns 10% of the amount, rounded half up to whole cents.
func computeTax(amountInCents int64) int64 {
	return (amountInCents*taxPercentage + 50) / 100
}

func invoiceNumber(issuedAt time.Time, userUID string) string {
	prefix := userUID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("INV-%s-%s", issuedAt.Format("20060102"), prefix)
}

// generateInvoice issues the invoice of a payment intent from its payment records.
// An intent that already has an invoice gets the existing one back, with created false.
func (s *service) generateInvoice(c context.Context, paymentIntentID string, userUID string, now time.Time) (Invoice, bool, error) {
	existing, found, err := s.stores.Invoices.Get(c, paymentIntentID)
	if err != nil {
		return Invoice{}, false, myerrors.NewInternalError(fmt.Errorf("error fetching invoice of %s: %w", paymentIntentID, err))
	}
	if found {
		return existing, false, nil
	}

	records, err := s.paymentRecordsOf(c, paymentIntentID)
	if err != nil {
		return Invoice{}, false, err
	}
	if len(records) == 0 {
		s.logger.Log(c, paymentIntentID, mylog.SeverityWarn, "No payment records for %s: no invoice issued", paymentIntentID)
		return Invoice{}, false, nil
	}

	amount := int64(0)
	for _, r := range records {
		amount += r.AmountInCents
	}
	tax := computeTax(amount)

	invoice := Invoice{
		UID:             paymentIntentID,
		InvoiceNumber:   invoiceNumber(now, userUID),
		UserUID:         userUID,
		PaymentIntentID: paymentIntentID,
		AmountInCents:   amount,
		TaxInCents:      tax,
		TotalInCents:    amount + tax,
		Currency:        records[0].Currency,
		Status:          invoiceStatusPaid,
		IssuedAt:        now,
		PaidAt:          now,
	}
	err = s.stores.Invoices.Put(c, invoice.UID, invoice)
	if err != nil {
		return Invoice{}, false, myerrors.NewInternalError(fmt.Errorf("error storing invoice of %s: %w", paymentIntentID, err))
	}

	s.logger.Log(c, paymentIntentID, mylog.SeverityInfo, "Issued invoice %s for %s: %d + %d = %d", invoice.InvoiceNumber, paymentIntentID, amount, tax, invoice.TotalInCents)

	return invoice, true, nil
}

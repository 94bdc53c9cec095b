package mymetrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(PaymentConfirmations.WithLabelValues("succeeded"))
	PaymentConfirmations.WithLabelValues("succeeded").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PaymentConfirmations.WithLabelValues("succeeded")))

	InvoicesIssued.Inc()

	response := httptest.NewRecorder()
	Handler().ServeHTTP(response, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, response.Code)
	assert.Contains(t, response.Body.String(), "course_invoices_issued_total")
	assert.Contains(t, response.Body.String(), `course_payment_confirmations_total{outcome="succeeded"}`)
}

package mymetrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PaymentIntentsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_payment_intents_created_total",
			Help: "Number of payment intents created, by mode",
		},
		[]string{"mode"},
	)

	PaymentConfirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_payment_confirmations_total",
			Help: "Number of payment confirmations, by outcome",
		},
		[]string{"outcome"},
	)

	CoursesUnlocked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "course_access_grants_total",
			Help: "Number of course purchases granted",
		},
	)

	InvoicesIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "course_invoices_issued_total",
			Help: "Number of invoices issued",
		},
	)

	FanOutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "course_purchase_fanout_seconds",
			Help: "Time taken by the purchase fan-out transaction",
		},
	)

	registerOnce sync.Once
)

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(PaymentIntentsCreated, PaymentConfirmations, CoursesUnlocked, InvoicesIssued, FanOutDuration)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/coursebackend/lib/myevents"
	"github.com/MarcGrol/coursebackend/lib/mymailer"
	"github.com/MarcGrol/coursebackend/lib/mypubsub"
	"github.com/MarcGrol/coursebackend/lib/mystore"
	"github.com/MarcGrol/coursebackend/services/catalogapi"
	"github.com/MarcGrol/coursebackend/services/purchase/purchaseevents"
)

var purchaseCompleted = purchaseevents.PurchaseCompleted{
	PaymentIntentID: "pi_1",
	UserUID:         "u1",
	CourseUIDs:      []string{"course-a", "course-b"},
	InvoiceNumber:   "INV-20230227-u1",
	AmountInCents:   3000,
	TaxInCents:      300,
	TotalInCents:    3300,
	Currency:        "usd",
}

func TestNotification(t *testing.T) {

	t.Run("Purchase completed sends invoice", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, router, courses, users, mailer := setup(t, ctrl)

		// given
		_ = users.Put(c, "u1", catalogapi.User{Email: "ada@example.com", FullName: "Ada"})
		_ = courses.Put(c, "course-a", catalogapi.Course{Title: "Go basics"})
		mailer.EXPECT().Send(gomock.Any(), "ada@example.com", "Your invoice INV-20230227-u1", gomock.Any()).DoAndReturn(func(c context.Context, to, subject, body string) error {
			assert.Contains(t, body, "Hi Ada,")
			assert.Contains(t, body, "- Go basics\n")
			assert.Contains(t, body, "- course-b\n")
			assert.Contains(t, body, "Total:   33.00 USD")
			return nil
		})

		// when
		response := postEvent(t, router, purchaseCompleted)

		// then
		assert.Equal(t, 200, response.Code)
	})

	t.Run("User without email is skipped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, router, _, users, _ := setup(t, ctrl)

		// given
		_ = users.Put(c, "u1", catalogapi.User{FullName: "Ada"})

		// when
		response := postEvent(t, router, purchaseCompleted)

		// then
		assert.Equal(t, 200, response.Code)
	})

	t.Run("Unknown user is skipped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _ := setup(t, ctrl)

		// when
		response := postEvent(t, router, purchaseCompleted)

		// then
		assert.Equal(t, 200, response.Code)
	})

	t.Run("Failing mail server asks for redelivery", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, router, _, users, mailer := setup(t, ctrl)

		// given
		_ = users.Put(c, "u1", catalogapi.User{Email: "ada@example.com"})
		mailer.EXPECT().Send(gomock.Any(), "ada@example.com", gomock.Any(), gomock.Any()).Return(fmt.Errorf("connection refused"))

		// when
		response := postEvent(t, router, purchaseCompleted)

		// then
		assert.Equal(t, 500, response.Code)
	})

	t.Run("Malformed push request", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _ := setup(t, ctrl)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/purchase/event", bytes.NewReader([]byte(`{"Message":`)))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 400, response.Code)
	})
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.05 USD", formatAmount(5, "usd"))
	assert.Equal(t, "19.99 EUR", formatAmount(1999, "eur"))
}

func postEvent(t *testing.T, router *mux.Router, event purchaseevents.PurchaseCompleted) *httptest.ResponseRecorder {
	payload, err := json.Marshal(event)
	assert.NoError(t, err)
	body, err := myevents.NewPushRequest("purchase-api-purchase-event", myevents.EventEnvelope{
		UID:           "1",
		Topic:         purchaseevents.TopicName,
		AggregateUID:  event.GetAggregateName(),
		EventTypeName: event.GetEventTypeName(),
		EventPayload:  string(payload),
	})
	assert.NoError(t, err)

	request, err := http.NewRequest(http.MethodPost, "/api/purchase/event", bytes.NewReader(body))
	assert.NoError(t, err)
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)
	return response
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[catalogapi.Course], mystore.Store[catalogapi.User], *mymailer.MockSender) {
	c := context.TODO()
	router := mux.NewRouter()

	courses := mystore.NewInMemoryStore[catalogapi.Course](c)
	users := mystore.NewInMemoryStore[catalogapi.User](c)
	pubsub := mypubsub.NewMockPubSub(ctrl)
	pubsub.EXPECT().Subscribe(gomock.Any(), purchaseevents.TopicName, "http://localhost:8080/api/purchase/event").Return(nil)
	mailer := mymailer.NewMockSender(ctrl)

	sut := NewWebService("http://localhost:8080/", pubsub, courses, users, mailer)
	err := sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return c, router, courses, users, mailer
}

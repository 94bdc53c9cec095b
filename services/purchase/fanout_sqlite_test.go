package purchase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v74"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/coursebackend/lib/mylog"
	"github.com/MarcGrol/coursebackend/lib/mypublisher"
	"github.com/MarcGrol/coursebackend/lib/mystore"
	"github.com/MarcGrol/coursebackend/lib/mytime"
	"github.com/MarcGrol/coursebackend/services/purchase/purchaseevents"
)

func TestFanOutOnSqlite(t *testing.T) {

	t.Run("Fan-out commits every write", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, stores, publisher, sut := setupSqlite(t, ctrl)

		// given
		givenPendingPurchase(c, stores)
		publisher.EXPECT().Publish(gomock.Any(), purchaseevents.TopicName, gomock.Any()).Return(nil)

		// when
		invoice, err := sut.completePurchase(c, succeededIntent())

		// then
		assert.NoError(t, err)
		if assert.NotNil(t, invoice) {
			assert.Equal(t, int64(3300), invoice.TotalInCents)
		}
		thenPurchaseCompleted(t, c, stores)
	})

	t.Run("Failing fan-out rolls back", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, stores, publisher, sut := setupSqlite(t, ctrl)

		// given
		givenPendingPurchase(c, stores)
		publisher.EXPECT().Publish(gomock.Any(), purchaseevents.TopicName, gomock.Any()).Return(fmt.Errorf("outbox full"))

		// when
		_, err := sut.completePurchase(c, succeededIntent())

		// then
		assert.Error(t, err)
		thenNothingCompleted(t, c, stores)
	})

	t.Run("Intent without user is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, _, _, sut := setupSqlite(t, ctrl)

		// when
		_, err := sut.completePurchase(c, &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded})

		// then
		assert.Error(t, err)
	})
}

func setupSqlite(t *testing.T, ctrl *gomock.Controller) (context.Context, Stores, *mypublisher.MockPublisher, *service) {
	c := context.TODO()

	db, cleanup, err := mystore.Connect(c, mystore.Config{DatabaseURL: "sqlite://:memory:"})
	assert.NoError(t, err)
	t.Cleanup(cleanup)

	stores, err := NewStores(c, db)
	assert.NoError(t, err)

	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
	publisher := mypublisher.NewMockPublisher(ctrl)

	sut := newService(Config{APIKey: "sk_test_123"}, mylog.New("purchase"), nower, NewMockPayer(ctrl), stores, publisher)

	return c, stores, publisher, sut
}

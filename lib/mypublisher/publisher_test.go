package mypublisher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/coursebackend/lib/myevents"
	"github.com/MarcGrol/coursebackend/lib/mypubsub"
	"github.com/MarcGrol/coursebackend/lib/myqueue"
	"github.com/MarcGrol/coursebackend/lib/mystore"
	"github.com/MarcGrol/coursebackend/lib/mytime"
)

type lessonWatched struct {
	LessonUID string
}

func (e lessonWatched) GetEventTypeName() string {
	return "lesson.watched"
}

func (e lessonWatched) GetAggregateName() string {
	return e.LessonUID
}

func TestTransactionalPublisher(t *testing.T) {

	t.Run("Publish stores envelope and enqueues trigger", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, _, outbox, _, queue, nower, sut := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(func(c context.Context, task myqueue.Task) error {
			assert.Equal(t, "/api/pubsub/lesson/"+task.UID, task.WebhookURLPath)
			return nil
		})

		// when
		err := sut.Publish(c, "lesson", lessonWatched{LessonUID: "l1"})

		// then
		assert.NoError(t, err)
		envelopes, _ := outbox.List(c)
		if assert.Len(t, envelopes, 1) {
			assert.Equal(t, "lesson.watched", envelopes[0].EventTypeName)
			assert.Equal(t, "l1", envelopes[0].AggregateUID)
			assert.Equal(t, `{"LessonUID":"l1"}`, envelopes[0].EventPayload)
			assert.False(t, envelopes[0].Published)
		}
	})

	t.Run("Same event gets same uid", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, _, outbox, _, queue, nower, sut := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Minute))
		queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil).Times(2)

		// when
		assert.NoError(t, sut.Publish(c, "lesson", lessonWatched{LessonUID: "l1"}))
		assert.NoError(t, sut.Publish(c, "lesson", lessonWatched{LessonUID: "l1"}))

		// then
		envelopes, _ := outbox.List(c)
		assert.Len(t, envelopes, 1)
	})

	t.Run("Trigger forwards unpublished events", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, router, outbox, pubsub, _, _, _ := setup(t, ctrl)

		// given
		_ = outbox.Put(c, "e1", myevents.EventEnvelope{UID: "e1", Topic: "lesson", CreatedAt: mytime.ExampleTime, EventTypeName: "lesson.watched"})
		_ = outbox.Put(c, "e2", myevents.EventEnvelope{UID: "e2", Topic: "lesson", CreatedAt: mytime.ExampleTime, Published: true})
		pubsub.EXPECT().Publish(gomock.Any(), "lesson", gomock.Any()).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPut, "/api/pubsub/lesson/e1", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), "Successfully published 1 event(s)")
		e1, _, _ := outbox.Get(c, "e1")
		assert.True(t, e1.Published)
	})

	t.Run("Trigger fails when pubsub fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, router, outbox, pubsub, _, _, _ := setup(t, ctrl)

		// given
		_ = outbox.Put(c, "e1", myevents.EventEnvelope{UID: "e1", Topic: "lesson", CreatedAt: mytime.ExampleTime})
		pubsub.EXPECT().Publish(gomock.Any(), "lesson", gomock.Any()).Return(assert.AnError)

		// when
		request, err := http.NewRequest(http.MethodPut, "/api/pubsub/lesson/e1", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 500, response.Code)
		e1, _, _ := outbox.Get(c, "e1")
		assert.False(t, e1.Published)
	})
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[myevents.EventEnvelope], *mypubsub.MockPubSub, *myqueue.MockTaskQueuer, *mytime.MockNower, *transactionalPublisher) {
	c := context.TODO()
	outbox := mystore.NewInMemoryStore[myevents.EventEnvelope](c)
	pubsub := mypubsub.NewMockPubSub(ctrl)
	queue := myqueue.NewMockTaskQueuer(ctrl)
	nower := mytime.NewMockNower(ctrl)

	sut := newTransactionalPublisher(outbox, pubsub, queue, nower)
	router := mux.NewRouter()
	sut.RegisterEndpoints(c, router)

	return c, router, outbox, pubsub, queue, nower, sut
}

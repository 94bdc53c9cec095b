package enrollment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/coursebackend/lib/mystore"
	"github.com/MarcGrol/coursebackend/lib/mytime"
	"github.com/MarcGrol/coursebackend/services/catalogapi"
	"github.com/MarcGrol/coursebackend/services/enrollmentapi"
)

const enrollmentUID = "u1_course-a"

func TestEnroll(t *testing.T) {

	t.Run("Enroll new user", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, router, stores, nower := setup(t, ctrl)

		// given
		givenCourse(c, stores, 4)
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		response := doRequest(router, http.MethodPost, "/api/courses/course-a/enroll?user_id=u1")

		// then
		assert.Equal(t, 200, response.Code)
		assert.JSONEq(t, `{"message":"Enrolled successfully","enrollment_id":"u1_course-a"}`, response.Body.String())
		enrollment, found, _ := stores.Enrollments.Get(c, enrollmentUID)
		assert.True(t, found)
		assert.Equal(t, mytime.ExampleTime, enrollment.EnrolledAt)
		assert.Equal(t, 0, enrollment.ProgressPercentage)
	})

	t.Run("Enroll twice", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, router, stores, _ := setup(t, ctrl)

		// given
		givenCourse(c, stores, 4)
		givenEnrollment(c, stores, 25)

		// when
		response := doRequest(router, http.MethodPost, "/api/courses/course-a/enroll?user_id=u1")

		// then
		assert.Equal(t, 200, response.Code)
		assert.JSONEq(t, `{"message":"Already enrolled","enrollment_id":"u1_course-a"}`, response.Body.String())
		enrollment, _, _ := stores.Enrollments.Get(c, enrollmentUID)
		assert.Equal(t, 25, enrollment.ProgressPercentage)
	})

	t.Run("Enroll in unknown course", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _ := setup(t, ctrl)

		// when
		response := doRequest(router, http.MethodPost, "/api/courses/course-x/enroll?user_id=u1")

		// then
		assert.Equal(t, 404, response.Code)
	})

	t.Run("Enroll without user", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _ := setup(t, ctrl)

		// when
		response := doRequest(router, http.MethodPost, "/api/courses/course-a/enroll")

		// then
		assert.Equal(t, 400, response.Code)
	})
}

func TestLessonProgress(t *testing.T) {

	t.Run("Completing a lesson updates course progress", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, router, stores, nower := setup(t, ctrl)

		// given
		givenCourse(c, stores, 4)
		givenEnrollment(c, stores, 0)
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		response := doRequest(router, http.MethodPost, "/api/courses/course-a/lessons/l1/progress?enrollment_id=u1_course-a&completed=true")

		// then
		assert.Equal(t, 200, response.Code)
		progress, found, _ := stores.Progress.Get(c, "u1_course-a_l1")
		assert.True(t, found)
		assert.True(t, progress.Completed)
		assert.Equal(t, mytime.ExampleTime, *progress.CompletedAt)

		enrollment, _, _ := stores.Enrollments.Get(c, enrollmentUID)
		assert.Equal(t, 25, enrollment.ProgressPercentage)
		assert.False(t, enrollment.Completed)
	})

	t.Run("Completing the last lesson completes the enrollment", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, router, stores, nower := setup(t, ctrl)

		// given
		givenCourse(c, stores, 2)
		givenEnrollment(c, stores, 50)
		givenCompletedLesson(c, stores, "l1")
		later := mytime.ExampleTime.Add(time.Hour)
		nower.EXPECT().Now().Return(later).Times(2)

		// when
		response := doRequest(router, http.MethodPost, "/api/courses/course-a/lessons/l2/progress?enrollment_id=u1_course-a&completed=true")

		// then
		assert.Equal(t, 200, response.Code)
		enrollment, _, _ := stores.Enrollments.Get(c, enrollmentUID)
		assert.Equal(t, 100, enrollment.ProgressPercentage)
		assert.True(t, enrollment.Completed)
		assert.Equal(t, later, *enrollment.CompletedAt)
	})

	t.Run("Reopening a lesson lowers progress", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, router, stores, nower := setup(t, ctrl)

		// given
		givenCourse(c, stores, 2)
		givenEnrollment(c, stores, 50)
		givenCompletedLesson(c, stores, "l1")
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		response := doRequest(router, http.MethodPost, "/api/courses/course-a/lessons/l1/progress?enrollment_id=u1_course-a&completed=false")

		// then
		assert.Equal(t, 200, response.Code)
		progress, _, _ := stores.Progress.Get(c, "u1_course-a_l1")
		assert.False(t, progress.Completed)
		assert.Nil(t, progress.CompletedAt)
		enrollment, _, _ := stores.Enrollments.Get(c, enrollmentUID)
		assert.Equal(t, 0, enrollment.ProgressPercentage)
	})

	t.Run("Course without lessons keeps progress", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, router, stores, nower := setup(t, ctrl)

		// given
		givenCourse(c, stores, 0)
		givenEnrollment(c, stores, 10)
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		response := doRequest(router, http.MethodPost, "/api/courses/course-a/lessons/l1/progress?enrollment_id=u1_course-a&completed=true")

		// then
		assert.Equal(t, 200, response.Code)
		enrollment, _, _ := stores.Enrollments.Get(c, enrollmentUID)
		assert.Equal(t, 10, enrollment.ProgressPercentage)
	})

	t.Run("Unknown enrollment", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, router, stores, nower := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		response := doRequest(router, http.MethodPost, "/api/courses/course-a/lessons/l1/progress?enrollment_id=u9_course-a&completed=true")

		// then
		assert.Equal(t, 404, response.Code)
		progress, _ := stores.Progress.List(c)
		assert.Empty(t, progress)
	})

	t.Run("Enrollment of other course", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, router, stores, nower := setup(t, ctrl)

		// given
		givenEnrollment(c, stores, 0)
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		response := doRequest(router, http.MethodPost, "/api/courses/course-b/lessons/l1/progress?enrollment_id=u1_course-a&completed=true")

		// then
		assert.Equal(t, 400, response.Code)
	})

	t.Run("List lesson progress", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c, router, stores, _ := setup(t, ctrl)

		// given
		givenCompletedLesson(c, stores, "l2")
		givenCompletedLesson(c, stores, "l1")
		_ = stores.Progress.Put(c, "other_l1", enrollmentapi.LessonProgress{EnrollmentUID: "other", LessonUID: "l1"})

		// when
		response := doRequest(router, http.MethodGet, "/api/courses/course-a/lessons/progress?enrollment_id=u1_course-a")

		// then
		assert.Equal(t, 200, response.Code)
		progress := []enrollmentapi.LessonProgress{}
		assert.NoError(t, json.Unmarshal(response.Body.Bytes(), &progress))
		if assert.Len(t, progress, 2) {
			assert.Equal(t, "l1", progress[0].LessonUID)
			assert.Equal(t, "l2", progress[1].LessonUID)
		}
	})
}

func givenCourse(c context.Context, stores Stores, lessonCount int) {
	_ = stores.Courses.Put(c, "course-a", catalogapi.Course{Title: "Go basics", LessonCount: lessonCount})
}

func givenEnrollment(c context.Context, stores Stores, progress int) {
	enrollment := enrollmentapi.NewEnrollment("u1", "course-a", mytime.ExampleTime)
	enrollment.ProgressPercentage = progress
	_ = stores.Enrollments.Put(c, enrollment.UID, enrollment)
}

func givenCompletedLesson(c context.Context, stores Stores, lessonUID string) {
	uid := enrollmentapi.LessonProgressUID(enrollmentUID, lessonUID)
	_ = stores.Progress.Put(c, uid, enrollmentapi.LessonProgress{
		EnrollmentUID:  enrollmentUID,
		CourseUID:      "course-a",
		LessonUID:      lessonUID,
		Completed:      true,
		CompletedAt:    &mytime.ExampleTime,
		LastAccessedAt: mytime.ExampleTime,
	})
}

func doRequest(router *mux.Router, method string, url string) *httptest.ResponseRecorder {
	request, _ := http.NewRequest(method, url, nil)
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)
	return response
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, Stores, *mytime.MockNower) {
	c := context.TODO()
	router := mux.NewRouter()

	stores := Stores{
		Courses:     mystore.NewInMemoryStore[catalogapi.Course](c),
		Enrollments: mystore.NewInMemoryStore[enrollmentapi.Enrollment](c),
		Progress:    mystore.NewInMemoryStore[enrollmentapi.LessonProgress](c),
	}
	nower := mytime.NewMockNower(ctrl)

	sut := NewWebService(nower, stores)
	sut.RegisterEndpoints(c, router)

	return c, router, stores, nower
}

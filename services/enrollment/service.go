package enrollment

import (
	"context"
	"fmt"

	"github.com/MarcGrol/coursebackend/lib/myerrors"
	"github.com/MarcGrol/coursebackend/lib/mylog"
	"github.com/MarcGrol/coursebackend/lib/mystore"
	"github.com/MarcGrol/coursebackend/lib/mytime"
	"github.com/MarcGrol/coursebackend/services/catalogapi"
	"github.com/MarcGrol/coursebackend/services/enrollmentapi"
)

type Stores struct {
	Courses     mystore.Store[catalogapi.Course]
	Enrollments mystore.Store[enrollmentapi.Enrollment]
	Progress    mystore.Store[enrollmentapi.LessonProgress]
}

type enrollResponse struct {
	Message       string `json:"message"`
	EnrollmentUID string `json:"enrollment_id"`
}

type service struct {
	logger mylog.Logger
	nower  mytime.Nower
	stores Stores
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(logger mylog.Logger, nower mytime.Nower, stores Stores) *service {
	return &service{
		logger: logger,
		nower:  nower,
		stores: stores,
	}
}

func (s *service) enroll(c context.Context, courseUID string, userUID string) (enrollResponse, error) {
	if userUID == "" {
		return enrollResponse{}, myerrors.NewInvalidInputErrorf("user_id is required")
	}

	_, found, err := s.stores.Courses.Get(c, courseUID)
	if err != nil {
		return enrollResponse{}, myerrors.NewInternalError(fmt.Errorf("error fetching course %s: %w", courseUID, err))
	}
	if !found {
		return enrollResponse{}, myerrors.NewNotFoundErrorf("course %s not found", courseUID)
	}

	resp := enrollResponse{}
	err = s.stores.Enrollments.RunInTransaction(c, func(c context.Context) error {
		enrollmentUID := enrollmentapi.EnrollmentUID(userUID, courseUID)
		_, exists, err := s.stores.Enrollments.Get(c, enrollmentUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching enrollment %s: %w", enrollmentUID, err))
		}
		if exists {
			resp = enrollResponse{Message: "Already enrolled", EnrollmentUID: enrollmentUID}
			return nil
		}

		err = s.stores.Enrollments.Put(c, enrollmentUID, enrollmentapi.NewEnrollment(userUID, courseUID, s.nower.Now()))
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing enrollment %s: %w", enrollmentUID, err))
		}
		resp = enrollResponse{Message: "Enrolled successfully", EnrollmentUID: enrollmentUID}
		return nil
	})
	if err != nil {
		return enrollResponse{}, err
	}

	s.logger.Log(c, resp.EnrollmentUID, mylog.SeverityInfo, "%s: user %s in course %s", resp.Message, userUID, courseUID)

	return resp, nil
}

func (s *service) updateLessonProgress(c context.Context, courseUID string, lessonUID string, enrollmentUID string, completed bool) (enrollmentapi.LessonProgress, error) {
	if enrollmentUID == "" {
		return enrollmentapi.LessonProgress{}, myerrors.NewInvalidInputErrorf("enrollment_id is required")
	}

	progress := enrollmentapi.LessonProgress{}
	err := s.stores.Enrollments.RunInTransaction(c, func(c context.Context) error {
		now := s.nower.Now()

		enrollment, found, err := s.stores.Enrollments.Get(c, enrollmentUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching enrollment %s: %w", enrollmentUID, err))
		}
		if !found {
			return myerrors.NewNotFoundErrorf("enrollment %s not found", enrollmentUID)
		}
		if enrollment.CourseUID != courseUID {
			return myerrors.NewInvalidInputErrorf("enrollment %s is not for course %s", enrollmentUID, courseUID)
		}

		progressUID := enrollmentapi.LessonProgressUID(enrollmentUID, lessonUID)
		progress, _, err = s.stores.Progress.Get(c, progressUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching lesson progress %s: %w", progressUID, err))
		}
		progress.UID = progressUID
		progress.EnrollmentUID = enrollmentUID
		progress.CourseUID = courseUID
		progress.LessonUID = lessonUID
		progress.LastAccessedAt = now
		if completed && !progress.Completed {
			progress.CompletedAt = &now
		}
		if !completed {
			progress.CompletedAt = nil
		}
		progress.Completed = completed

		err = s.stores.Progress.Put(c, progressUID, progress)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing lesson progress %s: %w", progressUID, err))
		}

		return s.updateCourseProgress(c, enrollment)
	})
	if err != nil {
		return enrollmentapi.LessonProgress{}, err
	}

	return progress, nil
}

// updateCourseProgress derives the percentage of completed lessons of an enrollment.
// Courses without lessons keep the enrollment as is.
func (s *service) updateCourseProgress(c context.Context, enrollment enrollmentapi.Enrollment) error {
	course, found, err := s.stores.Courses.Get(c, enrollment.CourseUID)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error fetching course %s: %w", enrollment.CourseUID, err))
	}
	if !found || course.LessonCount <= 0 {
		s.logger.Log(c, enrollment.UID, mylog.SeverityWarn, "Course %s has no lessons: progress of %s unchanged", enrollment.CourseUID, enrollment.UID)
		return nil
	}

	completedLessons, err := s.stores.Progress.Query(c, []mystore.Filter{
		{Field: "EnrollmentUID", Compare: "=", Value: enrollment.UID},
		{Field: "Completed", Compare: "=", Value: true},
	}, "")
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error fetching completed lessons of %s: %w", enrollment.UID, err))
	}

	percentage := len(completedLessons) * 100 / course.LessonCount
	if percentage > 100 {
		percentage = 100
	}

	enrollment.ProgressPercentage = percentage
	if percentage == 100 {
		if !enrollment.Completed {
			now := s.nower.Now()
			enrollment.CompletedAt = &now
		}
		enrollment.Completed = true
	} else {
		enrollment.Completed = false
		enrollment.CompletedAt = nil
	}

	err = s.stores.Enrollments.Put(c, enrollment.UID, enrollment)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error storing enrollment %s: %w", enrollment.UID, err))
	}

	s.logger.Log(c, enrollment.UID, mylog.SeverityInfo, "Progress of %s is %d%%", enrollment.UID, percentage)

	return nil
}

func (s *service) getLessonProgress(c context.Context, enrollmentUID string) ([]enrollmentapi.LessonProgress, error) {
	if enrollmentUID == "" {
		return nil, myerrors.NewInvalidInputErrorf("enrollment_id is required")
	}
	progress, err := s.stores.Progress.Query(c, []mystore.Filter{{Field: "EnrollmentUID", Compare: "=", Value: enrollmentUID}}, "LessonUID")
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error fetching lesson progress of %s: %w", enrollmentUID, err))
	}
	return progress, nil
}

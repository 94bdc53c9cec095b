package catalog

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/MarcGrol/coursebackend/lib/myerrors"
	"github.com/MarcGrol/coursebackend/lib/mylog"
	"github.com/MarcGrol/coursebackend/lib/mystore"
	"github.com/MarcGrol/coursebackend/lib/mytime"
	"github.com/MarcGrol/coursebackend/lib/myuuid"
	"github.com/MarcGrol/coursebackend/services/catalogapi"
)

type service struct {
	logger    mylog.Logger
	nower     mytime.Nower
	uuider    myuuid.UUIDer
	courses   mystore.Store[catalogapi.Course]
	users     mystore.Store[catalogapi.User]
	sanitizer *bluemonday.Policy
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(logger mylog.Logger, nower mytime.Nower, uuider myuuid.UUIDer, courses mystore.Store[catalogapi.Course], users mystore.Store[catalogapi.User]) *service {
	return &service{
		logger:    logger,
		nower:     nower,
		uuider:    uuider,
		courses:   courses,
		users:     users,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// plainText strips markup. The sanitizer escapes the text it keeps, which is undone to store plain text.
func (s *service) plainText(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(in)))
}

func (s *service) listCourses(c context.Context, category string) ([]catalogapi.Course, error) {
	filters := []mystore.Filter{}
	if category != "" {
		filters = append(filters, mystore.Filter{Field: "Category", Compare: "=", Value: category})
	}
	courses, err := s.courses.Query(c, filters, "Title")
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error fetching courses: %w", err))
	}
	return courses, nil
}

func (s *service) getCourse(c context.Context, courseUID string) (catalogapi.Course, error) {
	course, found, err := s.courses.Get(c, courseUID)
	if err != nil {
		return catalogapi.Course{}, myerrors.NewInternalError(fmt.Errorf("error fetching course %s: %w", courseUID, err))
	}
	if !found {
		return catalogapi.Course{}, myerrors.NewNotFoundErrorf("course %s not found", courseUID)
	}
	return course, nil
}

func (s *service) createCourse(c context.Context, course catalogapi.Course) (catalogapi.Course, error) {
	return s.putCourse(c, s.uuider.Create(), course)
}

func (s *service) putCourse(c context.Context, courseUID string, course catalogapi.Course) (catalogapi.Course, error) {
	course.UID = courseUID
	course.Title = s.plainText(course.Title)
	course.Description = s.plainText(course.Description)
	course.Category = s.plainText(course.Category)
	course.InstructorName = s.plainText(course.InstructorName)

	if course.Title == "" {
		return catalogapi.Course{}, myerrors.NewInvalidInputErrorf("course title is required")
	}
	if course.Price < 0 {
		return catalogapi.Course{}, myerrors.NewInvalidInputErrorf("course price must not be negative")
	}
	if course.LessonCount < 0 {
		return catalogapi.Course{}, myerrors.NewInvalidInputErrorf("lesson count must not be negative")
	}

	err := s.courses.RunInTransaction(c, func(c context.Context) error {
		now := s.nower.Now()
		existing, found, err := s.courses.Get(c, courseUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching course %s: %w", courseUID, err))
		}
		if found {
			course.CreatedAt = existing.CreatedAt
			course.LastModified = &now
		} else {
			course.CreatedAt = now
			course.LastModified = nil
		}

		err = s.courses.Put(c, courseUID, course)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing course %s: %w", courseUID, err))
		}
		return nil
	})
	if err != nil {
		return catalogapi.Course{}, err
	}

	s.logger.Log(c, courseUID, mylog.SeverityInfo, "Stored course %s (%s) at price %.2f", courseUID, course.Title, course.Price)

	return course, nil
}

func (s *service) getUser(c context.Context, userUID string) (catalogapi.User, error) {
	user, found, err := s.users.Get(c, userUID)
	if err != nil {
		return catalogapi.User{}, myerrors.NewInternalError(fmt.Errorf("error fetching user %s: %w", userUID, err))
	}
	if !found {
		return catalogapi.User{}, myerrors.NewNotFoundErrorf("user %s not found", userUID)
	}
	return user, nil
}

// putUser stores the profile of a user. The payment customer id is owned by the purchase workflow and kept as is.
func (s *service) putUser(c context.Context, userUID string, user catalogapi.User) (catalogapi.User, error) {
	user.UID = userUID
	user.FullName = s.plainText(user.FullName)
	user.Email = strings.TrimSpace(user.Email)
	if user.Email != "" && !strings.Contains(user.Email, "@") {
		return catalogapi.User{}, myerrors.NewInvalidInputErrorf("invalid email address %q", user.Email)
	}

	err := s.users.RunInTransaction(c, func(c context.Context) error {
		now := s.nower.Now()
		existing, found, err := s.users.Get(c, userUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching user %s: %w", userUID, err))
		}
		user.StripeCustomerID = existing.StripeCustomerID
		if found {
			user.CreatedAt = existing.CreatedAt
			user.LastModified = &now
		} else {
			user.CreatedAt = now
			user.LastModified = nil
		}

		err = s.users.Put(c, userUID, user)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing user %s: %w", userUID, err))
		}
		return nil
	})
	if err != nil {
		return catalogapi.User{}, err
	}

	s.logger.Log(c, userUID, mylog.SeverityInfo, "Stored user %s", userUID)

	return user, nil
}

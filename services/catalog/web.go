package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/coursebackend/lib/mycontext"
	"github.com/MarcGrol/coursebackend/lib/myerrors"
	"github.com/MarcGrol/coursebackend/lib/myhttp"
	"github.com/MarcGrol/coursebackend/lib/mylog"
	"github.com/MarcGrol/coursebackend/lib/mystore"
	"github.com/MarcGrol/coursebackend/lib/mytime"
	"github.com/MarcGrol/coursebackend/lib/myuuid"
	"github.com/MarcGrol/coursebackend/services/catalogapi"
)

type courseQuery struct {
	Category string `form:"category"`
}

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(nower mytime.Nower, uuider myuuid.UUIDer, courses mystore.Store[catalogapi.Course], users mystore.Store[catalogapi.User]) *webService {
	logger := mylog.New("catalog")
	return &webService{
		logger:  logger,
		service: newService(logger, nower, uuider, courses, users),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) {
	router.HandleFunc("/api/courses", s.listCourses()).Methods("GET")
	router.HandleFunc("/api/courses", s.createCourse()).Methods("POST")
	router.HandleFunc("/api/courses/{courseUID}", s.getCourse()).Methods("GET")
	router.HandleFunc("/api/courses/{courseUID}", s.putCourse()).Methods("PUT")

	router.HandleFunc("/api/users/{userUID}", s.getUser()).Methods("GET")
	router.HandleFunc("/api/users/{userUID}", s.putUser()).Methods("PUT")
}

func (s *webService) listCourses() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		q := courseQuery{}
		err := myhttp.DecodeForm(r, &q)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		courses, err := s.service.listCourses(c, q.Category)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, courses)
	}
}

func (s *webService) getCourse() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		course, err := s.service.getCourse(c, mux.Vars(r)["courseUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, course)
	}
}

func (s *webService) createCourse() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		course := catalogapi.Course{}
		err := json.NewDecoder(r.Body).Decode(&course)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing course: %s", err)))
			return
		}

		course, err = s.service.createCourse(c, course)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusCreated, course)
	}
}

func (s *webService) putCourse() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		course := catalogapi.Course{}
		err := json.NewDecoder(r.Body).Decode(&course)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing course: %s", err)))
			return
		}

		course, err = s.service.putCourse(c, mux.Vars(r)["courseUID"], course)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, course)
	}
}

func (s *webService) getUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		user, err := s.service.getUser(c, mux.Vars(r)["userUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, user)
	}
}

func (s *webService) putUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		user := catalogapi.User{}
		err := json.NewDecoder(r.Body).Decode(&user)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing user: %s", err)))
			return
		}

		user, err = s.service.putUser(c, mux.Vars(r)["userUID"], user)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, user)
	}
}

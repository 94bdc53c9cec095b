package enrollment

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/coursebackend/lib/mycontext"
	"github.com/MarcGrol/coursebackend/lib/myhttp"
	"github.com/MarcGrol/coursebackend/lib/mylog"
	"github.com/MarcGrol/coursebackend/lib/mytime"
)

type enrollRequest struct {
	UserUID string `form:"user_id"`
}

type progressRequest struct {
	EnrollmentUID string `form:"enrollment_id"`
	Completed     bool   `form:"completed"`
}

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(nower mytime.Nower, stores Stores) *webService {
	logger := mylog.New("enrollment")
	return &webService{
		logger:  logger,
		service: newService(logger, nower, stores),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) {
	router.HandleFunc("/api/courses/{courseUID}/enroll", s.enroll()).Methods("POST")
	router.HandleFunc("/api/courses/{courseUID}/lessons/progress", s.getLessonProgress()).Methods("GET")
	router.HandleFunc("/api/courses/{courseUID}/lessons/{lessonUID}/progress", s.updateLessonProgress()).Methods("POST")
}

func (s *webService) enroll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		req := enrollRequest{}
		err := myhttp.DecodeForm(r, &req)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		resp, err := s.service.enroll(c, mux.Vars(r)["courseUID"], req.UserUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, resp)
	}
}

func (s *webService) updateLessonProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		req := progressRequest{}
		err := myhttp.DecodeForm(r, &req)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		progress, err := s.service.updateLessonProgress(c, mux.Vars(r)["courseUID"], mux.Vars(r)["lessonUID"], req.EnrollmentUID, req.Completed)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, progress)
	}
}

func (s *webService) getLessonProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		req := progressRequest{}
		err := myhttp.DecodeForm(r, &req)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		progress, err := s.service.getLessonProgress(c, req.EnrollmentUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, progress)
	}
}

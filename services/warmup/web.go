package warmup

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/coursebackend/lib/mycontext"
	"github.com/MarcGrol/coursebackend/lib/myerrors"
	"github.com/MarcGrol/coursebackend/lib/myhttp"
	"github.com/MarcGrol/coursebackend/lib/mylog"
	"github.com/MarcGrol/coursebackend/lib/mystore"
	"github.com/MarcGrol/coursebackend/services/catalogapi"
)

// Wiring describes the backends the process runs on.
type Wiring struct {
	Database       string `json:"database"`
	PaymentGateway string `json:"payment_gateway"`
}

type healthResponse struct {
	Status string `json:"status"`
	Wiring
}

type webService struct {
	logger  mylog.Logger
	wiring  Wiring
	courses mystore.Store[catalogapi.Course]
}

// Use dependency injection to isolate the infrastructure and ease testing
func NewService(wiring Wiring, courses mystore.Store[catalogapi.Course]) *webService {
	logger := mylog.New("warmup")
	return &webService{
		logger:  logger,
		wiring:  wiring,
		courses: courses,
	}
}

func (s webService) RegisterEndpoints(c context.Context, router *mux.Router) {
	router.HandleFunc("/_ah/warmup", s.warmupPage()).Methods("GET")
	router.HandleFunc("/health", s.healthPage()).Methods("GET")
}

// warmupPage opens the datastore connection before the first real request arrives
func (s *webService) warmupPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		_, _, err := s.courses.Get(c, "warmup")
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInternalError(fmt.Errorf("error warming up datastore: %w", err)))
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Successfully processed warmup request",
		})
	}
}

func (s *webService) healthPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		errorWriter.Write(c, w, http.StatusOK, healthResponse{
			Status: "ok",
			Wiring: s.wiring,
		})
	}
}

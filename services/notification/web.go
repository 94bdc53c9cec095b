package notification

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/coursebackend/lib/mycontext"
	"github.com/MarcGrol/coursebackend/lib/myhttp"
	"github.com/MarcGrol/coursebackend/lib/mylog"
	"github.com/MarcGrol/coursebackend/lib/mymailer"
	"github.com/MarcGrol/coursebackend/lib/mypubsub"
	"github.com/MarcGrol/coursebackend/lib/mystore"
	"github.com/MarcGrol/coursebackend/services/catalogapi"
	"github.com/MarcGrol/coursebackend/services/purchase/purchaseevents"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(baseURL string, pubsub mypubsub.PubSub, courses mystore.Store[catalogapi.Course], users mystore.Store[catalogapi.User], mailer mymailer.Sender) *webService {
	logger := mylog.New("notification")
	return &webService{
		logger:  logger,
		service: newService(logger, baseURL, pubsub, courses, users, mailer),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc(eventPath, s.handleEventEnvelope()).Methods("POST")

	return s.service.Subscribe(c)
}

func (s *webService) handleEventEnvelope() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		err := purchaseevents.DispatchEvent(c, r.Body, s.service)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Successfully processed event",
		})
	}
}

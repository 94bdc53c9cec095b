package purchase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/coursebackend/lib/mycontext"
	"github.com/MarcGrol/coursebackend/lib/myerrors"
	"github.com/MarcGrol/coursebackend/lib/myhttp"
	"github.com/MarcGrol/coursebackend/lib/mylog"
	"github.com/MarcGrol/coursebackend/lib/mypublisher"
	"github.com/MarcGrol/coursebackend/lib/mytime"
	"github.com/MarcGrol/coursebackend/services/purchase/purchaseevents"
)

const maxWebhookPayload = 65536

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(cfg Config, payer Payer, nower mytime.Nower, stores Stores, publisher mypublisher.Publisher) *webService {
	logger := mylog.New("purchase")
	return &webService{
		logger:  logger,
		service: newService(cfg, logger, nower, payer, stores, publisher),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	err := s.service.publisher.CreateTopic(c, purchaseevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", purchaseevents.TopicName, err)
	}

	router.HandleFunc("/api/cart/add", s.addToCart()).Methods("POST")
	router.HandleFunc("/api/cart/remove", s.removeFromCart()).Methods("DELETE")
	router.HandleFunc("/api/cart/{userUID}", s.getCart()).Methods("GET")
	router.HandleFunc("/api/cart/{userUID}/clear", s.clearCart()).Methods("DELETE")

	router.HandleFunc("/api/payments/create-intent", s.createPaymentIntent()).Methods("POST")
	router.HandleFunc("/api/payments/confirm", s.confirmPayment()).Methods("POST")
	router.HandleFunc("/api/payments/webhook", s.webhookNotification()).Methods("POST")
	router.HandleFunc("/api/payments/history/{userUID}", s.getPaymentHistory()).Methods("GET")

	router.HandleFunc("/api/invoices/{userUID}", s.getInvoices()).Methods("GET")

	router.HandleFunc("/api/purchases/{userUID}", s.getPurchases()).Methods("GET")
	router.HandleFunc("/api/purchases/check/{userUID}/{courseUID}", s.checkAccess()).Methods("GET")

	return nil
}

func (s *webService) addToCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		req := addToCartRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}

		item, err := s.service.addToCart(c, req.UserUID, req.CourseUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, item)
	}
}

func (s *webService) getCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		entries, err := s.service.getCart(c, mux.Vars(r)["userUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, entries)
	}
}

func (s *webService) removeFromCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		req := removeFromCartRequest{}
		err := myhttp.DecodeForm(r, &req)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		err = s.service.removeFromCart(c, req.UserUID, req.CourseUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{Message: "Removed from cart"})
	}
}

func (s *webService) clearCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		err := s.service.clearCart(c, mux.Vars(r)["userUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{Message: "Cart cleared"})
	}
}

func (s *webService) createPaymentIntent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		req := createIntentRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}

		resp, err := s.service.createPaymentIntent(c, req.UserUID, req.CourseUIDs)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, resp)
	}
}

func (s *webService) confirmPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		req := confirmRequest{}
		err := myhttp.DecodeForm(r, &req)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		resp, err := s.service.confirmPayment(c, req.PaymentIntentID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, resp)
	}
}

func (s *webService) webhookNotification() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookPayload))
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error reading webhook body: %s", err)))
			return
		}

		err = s.service.webhookNotification(c, payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{})
	}
}

func (s *webService) getPaymentHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		entries, err := s.service.getPaymentHistory(c, mux.Vars(r)["userUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, entries)
	}
}

func (s *webService) getInvoices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		invoices, err := s.service.getInvoices(c, mux.Vars(r)["userUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, invoices)
	}
}

func (s *webService) getPurchases() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		entries, err := s.service.getPurchases(c, mux.Vars(r)["userUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, entries)
	}
}

func (s *webService) checkAccess() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		hasAccess := s.service.hasPurchasedCourse(c, mux.Vars(r)["userUID"], mux.Vars(r)["courseUID"])

		errorWriter.Write(c, w, http.StatusOK, accessResponse{HasAccess: hasAccess})
	}
}

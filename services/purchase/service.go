package purchase

import (
	"context"
	"fmt"

	"github.com/MarcGrol/coursebackend/lib/myerrors"
	"github.com/MarcGrol/coursebackend/lib/mylog"
	"github.com/MarcGrol/coursebackend/lib/mypublisher"
	"github.com/MarcGrol/coursebackend/lib/mystore"
	"github.com/MarcGrol/coursebackend/lib/mytime"
	"github.com/MarcGrol/coursebackend/services/catalogapi"
	"github.com/MarcGrol/coursebackend/services/enrollmentapi"
)

type Config struct {
	// APIKey of the payment gateway. Without it the service runs in mock mode.
	APIKey        string
	WebhookSecret string
	Currency      string
}

// Stores groups the entities the purchase workflow reads and writes.
// All stores must come from the same database so that the fan-out is one transaction.
type Stores struct {
	Courses     mystore.Store[catalogapi.Course]
	Users       mystore.Store[catalogapi.User]
	Cart        mystore.Store[CartItem]
	Payments    mystore.Store[PaymentRecord]
	Purchases   mystore.Store[CoursePurchase]
	Enrollments mystore.Store[enrollmentapi.Enrollment]
	Invoices    mystore.Store[Invoice]
}

func NewStores(c context.Context, db *mystore.Database) (Stores, error) {
	var err error
	s := Stores{}

	if s.Courses, err = mystore.New[catalogapi.Course](c, db); err != nil {
		return Stores{}, err
	}
	if s.Users, err = mystore.New[catalogapi.User](c, db); err != nil {
		return Stores{}, err
	}
	if s.Cart, err = mystore.New[CartItem](c, db); err != nil {
		return Stores{}, err
	}
	if s.Payments, err = mystore.New[PaymentRecord](c, db); err != nil {
		return Stores{}, err
	}
	if s.Purchases, err = mystore.New[CoursePurchase](c, db); err != nil {
		return Stores{}, err
	}
	if s.Enrollments, err = mystore.New[enrollmentapi.Enrollment](c, db); err != nil {
		return Stores{}, err
	}
	if s.Invoices, err = mystore.New[Invoice](c, db); err != nil {
		return Stores{}, err
	}

	return s, nil
}

func (s Stores) configured() bool {
	return s.Courses != nil && s.Users != nil && s.Cart != nil && s.Payments != nil &&
		s.Purchases != nil && s.Enrollments != nil && s.Invoices != nil
}

type service struct {
	cfg       Config
	logger    mylog.Logger
	nower     mytime.Nower
	payer     Payer
	stores    Stores
	publisher mypublisher.Publisher
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(cfg Config, logger mylog.Logger, nower mytime.Nower, payer Payer, stores Stores, publisher mypublisher.Publisher) *service {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &service{
		cfg:       cfg,
		logger:    logger,
		nower:     nower,
		payer:     payer,
		stores:    stores,
		publisher: publisher,
	}
}

func (s *service) mockMode() bool {
	return s.cfg.APIKey == "" || s.payer == nil
}

func (s *service) checkConfigured() error {
	if !s.stores.configured() {
		return myerrors.NewInternalError(fmt.Errorf("database not configured"))
	}
	return nil
}

func (s *service) courseTitle(c context.Context, courseUID string) string {
	course, found, err := s.stores.Courses.Get(c, courseUID)
	if err != nil || !found {
		return ""
	}
	return course.Title
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/coursebackend/lib/myconfig"
	"github.com/MarcGrol/coursebackend/lib/mymailer"
	"github.com/MarcGrol/coursebackend/lib/mymetrics"
	"github.com/MarcGrol/coursebackend/lib/mypublisher"
	"github.com/MarcGrol/coursebackend/lib/mypubsub"
	"github.com/MarcGrol/coursebackend/lib/myqueue"
	"github.com/MarcGrol/coursebackend/lib/mystore"
	"github.com/MarcGrol/coursebackend/lib/mytime"
	"github.com/MarcGrol/coursebackend/lib/myuuid"
	"github.com/MarcGrol/coursebackend/services/catalog"
	"github.com/MarcGrol/coursebackend/services/enrollment"
	"github.com/MarcGrol/coursebackend/services/enrollmentapi"
	"github.com/MarcGrol/coursebackend/services/notification"
	"github.com/MarcGrol/coursebackend/services/purchase"
	"github.com/MarcGrol/coursebackend/services/warmup"
)

func main() {
	c := context.Background()

	cfg, err := myconfig.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %s", err)
	}

	router := mux.NewRouter()

	cleanup, err := registerServices(c, cfg, router)
	if err != nil {
		log.Fatalf("Error setting up services: %s", err)
	}
	defer cleanup()

	startWebServerBlocking(c, cfg, router)
}

func registerServices(c context.Context, cfg myconfig.Config, router *mux.Router) (func(), error) {
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	db, dbCleanup, err := mystore.Connect(c, mystore.Config{
		GoogleCloudProject: cfg.GoogleCloudProject,
		DatabaseURL:        cfg.DatabaseURL,
	})
	if err != nil {
		return cleanup, err
	}
	cleanups = append(cleanups, dbCleanup)

	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		return cleanup, err
	}
	cleanups = append(cleanups, pubsubCleanup)

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		return cleanup, err
	}
	cleanups = append(cleanups, queueCleanup)

	nower := mytime.RealNower{}

	publisher, err := mypublisher.New(c, db, pubsub, queue, nower)
	if err != nil {
		return cleanup, err
	}
	publisher.RegisterEndpoints(c, router)

	purchaseStores, err := purchase.NewStores(c, db)
	if err != nil {
		return cleanup, err
	}
	var payer purchase.Payer
	if cfg.Stripe.SecretKey != "" {
		payer = purchase.NewPayer(cfg.Stripe.SecretKey)
	}
	purchaseService := purchase.NewWebService(purchase.Config{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Currency:      cfg.Stripe.Currency,
	}, payer, nower, purchaseStores, publisher)
	err = purchaseService.RegisterEndpoints(c, router)
	if err != nil {
		return cleanup, err
	}

	catalogService := catalog.NewWebService(nower, myuuid.RealUUIDer{}, purchaseStores.Courses, purchaseStores.Users)
	catalogService.RegisterEndpoints(c, router)

	// courses and enrollments are shared with the purchase workflow
	lessonProgress, err := mystore.New[enrollmentapi.LessonProgress](c, db)
	if err != nil {
		return cleanup, err
	}
	enrollmentService := enrollment.NewWebService(nower, enrollment.Stores{
		Courses:     purchaseStores.Courses,
		Enrollments: purchaseStores.Enrollments,
		Progress:    lessonProgress,
	})
	enrollmentService.RegisterEndpoints(c, router)

	mailer := mymailer.New(mymailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	notificationService := notification.NewWebService(cfg.BaseURL, pubsub, purchaseStores.Courses, purchaseStores.Users, mailer)
	err = notificationService.RegisterEndpoints(c, router)
	if err != nil {
		return cleanup, err
	}

	mymetrics.Register()
	router.Handle("/metrics", mymetrics.Handler()).Methods("GET")

	warmupService := warmup.NewService(wiringOf(cfg), purchaseStores.Courses)
	warmupService.RegisterEndpoints(c, router)

	return cleanup, nil
}

func wiringOf(cfg myconfig.Config) warmup.Wiring {
	wiring := warmup.Wiring{
		Database:       "in-memory",
		PaymentGateway: "mock",
	}
	switch {
	case cfg.GoogleCloudProject != "":
		wiring.Database = "datastore"
	case cfg.DatabaseURL != "":
		wiring.Database = "sql"
	}
	if cfg.Stripe.SecretKey != "" {
		wiring.PaymentGateway = "stripe"
	}
	return wiring
}

func startWebServerBlocking(c context.Context, cfg myconfig.Config, router *mux.Router) {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		shutdownCtx, cancel := context.WithTimeout(c, 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			log.Printf("Error shutting down webserver: %s", err)
		}
	}()

	log.Printf("Starting webserver on port %s (try http://localhost:%s)", cfg.Port, cfg.Port)
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Error starting webserver on port %s: %s", cfg.Port, err)
	}
}

package main

import (
	"context"

	"resourcehub/internal/auth"
	bookinghandler "resourcehub/internal/bookings/handler"
	bookingrepo "resourcehub/internal/bookings/repository"
	bookingservice "resourcehub/internal/bookings/service"
	bookingvalidator "resourcehub/internal/bookings/validator"
	"resourcehub/internal/catalog"
	"resourcehub/internal/events"
	"resourcehub/internal/scheduler"
	waitlisthandler "resourcehub/internal/waitlist/handler"
	waitlistrepo "resourcehub/internal/waitlist/repository"
	waitlistservice "resourcehub/internal/waitlist/service"
	waitlistvalidator "resourcehub/internal/waitlist/validator"
	"resourcehub/pkg/app"
	"resourcehub/pkg/config"
	mongodb "resourcehub/pkg/db/mongo"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)

	cfg.Log.Info("Starting Bookings service")
	cfg.SetMongo()

	locks := mongodb.NewLockManager(cfg.Client.Mongo, cfg.MongoDatabaseName)
	if err := locks.EnsureIndexes(context.Background()); err != nil {
		cfg.Log.Fatal("Failed to create lock indexes", "error", err)
	}

	publisher, err := events.NewKafkaPublisher(cfg, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize event publisher", "error", err)
	}
	dispatcher := events.NewDispatcher(publisher, cfg.Log, cfg.EventPublishTimeout)

	resourceCatalog := catalog.NewMongoResourceCatalog(cfg)
	gate := auth.NewOwnershipGate()

	waitlistSvc := waitlistservice.NewWaitlistService(
		waitlistrepo.NewMongoWaitlistRepository(cfg),
		resourceCatalog,
		locks,
		waitlistvalidator.NewWaitlistValidator(cfg.Log),
		dispatcher,
		cfg,
	)

	bookingSvc := bookingservice.NewBookingService(
		bookingrepo.NewMongoBookingRepository(cfg),
		resourceCatalog,
		gate,
		locks,
		bookingvalidator.NewBookingValidator(cfg.Log),
		dispatcher,
		waitlistSvc,
		waitlistSvc,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	sweeper := scheduler.New(bookingSvc, waitlistSvc, cfg.SweepInterval, cfg.Log)
	go sweeper.Start(sweepCtx)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		bookinghandler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
		bookinghandler.NewBookingHandler(bookingSvc, cfg.Log),
		waitlisthandler.NewWaitlistHandler(waitlistSvc, cfg.Log),
	)
	serverApp.OnShutdown(stopSweeps)
	serverApp.OnShutdown(func() {
		if err := dispatcher.Close(); err != nil {
			cfg.Log.Error("Failed to close event dispatcher", "error", err)
		}
	})
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

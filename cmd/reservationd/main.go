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

	"github.com/SherClockHolmes/webpush-go"

	"reservation-backend/config"
	"reservation-backend/internal/api"
	"reservation-backend/internal/coord"
	"reservation-backend/internal/db"
	"reservation-backend/internal/hub"
	"reservation-backend/internal/notification"
	"reservation-backend/internal/sched"
	"reservation-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "reservationd ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
	workerPool.Start(ctx)

	pushHub := hub.New(appStore, cfg.Booking.TimeSlots, cfg.Booking.MaxPerSlot, hub.Options{
		MaxMessagesPerMinute: cfg.Hub.MaxMessagesPerMinute,
		SendTimeout:          cfg.Hub.SendTimeout,
		SendBuffer:           cfg.Hub.SendBuffer,
	})

	// The scheduler and coordinator reference each other: deadline jobs fire
	// back into the coordinator, which re-checks deposit state before alerting.
	var coordinator *coord.Coordinator
	scheduler := sched.New(sched.NewRealClock(), func(bookingID int64, kind sched.JobKind) {
		coordinator.OnDeadline(bookingID, kind)
	})
	defer scheduler.Stop()

	coordinator = coord.New(appStore, scheduler, pushHub, workerPool, cfg.Booking)
	logger.Println("availability engine initialized")

	router := api.NewRouter(coordinator, appStore, pushHub, cfg, &webpushOptions)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}

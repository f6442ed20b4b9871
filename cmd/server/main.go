package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ebike-booking/config"
	"ebike-booking/internal/api"
	"ebike-booking/internal/broker"
	"ebike-booking/internal/redisclient"
	"ebike-booking/internal/service"
	"ebike-booking/internal/session"
	"ebike-booking/internal/store"
	"ebike-booking/internal/util"
	"ebike-booking/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type repository interface {
	service.BookingRepository
	service.ProcessedEventStore
	api.Pinger
}

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting booking service")

	tp, err := util.InitTracer(util.TracingOptions{
		JaegerEndpoint: cfg.Observ.JaegerEndpoint,
		Environment:    cfg.Server.Env,
		SampleRatio:    cfg.Observ.TraceSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	ctx := context.Background()
	readiness := map[string]api.Pinger{}

	var repo repository
	if cfg.Database.Driver == "memory" {
		repo = store.NewMemoryStore()
		logger.Warn("Using in-memory booking store; data is lost on restart")
	} else {
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Database connected")

		if cfg.Database.AutoMigrate {
			backfilled, err := db.Migrate(ctx)
			if err != nil {
				log.Fatalf("Failed to migrate database: %v", err)
			}
			logger.Info("Schema applied", zap.Int("backfilled_stages", backfilled))
		}
		repo = db
	}
	readiness["store"] = repo

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var sessions session.Store
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-process sessions", zap.Error(err))
		memSessions := session.NewMemoryStore(nil)
		go memSessions.RunSweeper(workerCtx, time.Minute)
		sessions = memSessions
	} else {
		defer redisClient.Close()
		log.Println("Redis connected")
		sessions = session.NewRedisStore(redisClient)
		readiness["redis"] = redisClient
	}

	rates := service.DefaultRateTable()
	if cfg.Business.InstallmentRatesFile != "" {
		rates, err = service.LoadRateTable(cfg.Business.InstallmentRatesFile)
		if err != nil {
			log.Fatalf("Failed to load installment rates: %v", err)
		}
	}

	notifier := service.NewNotificationService(service.NewLogMailer(), repo)

	var publisher service.EventPublisher
	var notificationWorker *worker.NotificationWorker
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicBooking)
		defer producer.Close()
		log.Println("Kafka producer initialized")
		publisher = broker.NewEventPublisher(producer)

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicBooking, cfg.Kafka.ConsumerGroup)
		notificationWorker = worker.NewNotificationWorker(consumer, notifier)
		go func() {
			if err := notificationWorker.Start(workerCtx); err != nil {
				log.Printf("Notification worker error: %v", err)
			}
		}()
	} else {
		logger.Info("Kafka disabled, notifications are sent inline")
		publisher = service.NewDirectPublisher(notifier)
	}

	bookingService := service.NewBookingService(repo, sessions, publisher, rates, service.BookingServiceConfig{
		MaxPerDay:         cfg.Business.MaxBookingsPerDay,
		InstallmentMonths: cfg.Business.InstallmentMonths,
		ReceiptPrefix:     cfg.Business.ReceiptPrefix,
	})

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(bookingService, sessions, api.Options{
		JWTSecret:          cfg.Auth.JWTSecret,
		SessionTTL:         time.Duration(cfg.Auth.SessionTTLMinutes) * time.Minute,
		RateLimitPerMinute: cfg.RateLimit.PerMinute,
		Readiness:          readiness,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	if notificationWorker != nil {
		notificationWorker.Stop()
	}

	log.Println("Server exited")
}

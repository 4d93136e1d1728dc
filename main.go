package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"reluxrent/api/internal/api"
	"reluxrent/api/internal/cache"
	"reluxrent/api/internal/config"
	"reluxrent/api/internal/db"
	"reluxrent/api/internal/email"
	"reluxrent/api/internal/push"
	"reluxrent/api/internal/repository"
	"reluxrent/api/internal/services"
	"reluxrent/api/internal/tasks"
	"reluxrent/api/internal/utils"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		// logger is not configured yet
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	utils.InitializeLogger(cfg.AppEnv)
	logger := utils.GetLogger()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			logger.Error("Error disconnecting from MongoDB", zap.Error(err))
		}
	}()

	store := repository.NewMongoStore(mongoDb)
	indexCtx, indexCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := store.EnsureIndexes(indexCtx); err != nil {
		logger.Fatal("Failed to ensure MongoDB indexes", zap.Error(err))
	}
	indexCancel()

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			logger.Error("Error disconnecting from Redis", zap.Error(err))
		}
	}()

	// Email delivery: captured in Redis for end-to-end tests, otherwise SMTP.
	var primaryEmailSender email.Sender
	var emailCapture api.EmailCapture
	if cfg.MockServices {
		logger.Info("MOCK_SERVICES enabled: capturing emails in Redis")
		redisSender := email.NewRedisSender(redisClient, cfg, logger)
		primaryEmailSender = redisSender
		emailCapture = redisSender
	} else {
		primaryEmailSender = email.NewSMTPSender(cfg, logger)
	}
	compositeSender := email.NewCompositeEmailSender(primaryEmailSender)
	if cfg.EmailLogPath != "" {
		fileSender, err := email.NewFileEmailSender(cfg.EmailLogPath, logger)
		if err != nil {
			logger.Warn("Failed to initialize file email sender, proceeding without it",
				zap.String("path", cfg.EmailLogPath), zap.Error(err))
		} else {
			compositeSender.AddSender(fileSender)
		}
	}

	// Push delivery: FCM when credentials are configured.
	var pushSender push.Sender = push.NewLogSender(logger)
	if cfg.FirebaseCredentialsFile != "" {
		fcmSender, err := push.NewFCMSender(ctx, cfg.FirebaseCredentialsFile, logger)
		if err != nil {
			logger.Fatal("Failed to initialize FCM", zap.Error(err))
		}
		pushSender = fcmSender
	}

	taskClient := tasks.NewClient(cfg)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error("Error closing task client", zap.Error(err))
		}
	}()
	dispatcher := tasks.NewDispatcher(taskClient)

	// Booking core
	audit := services.NewAuditRecorder(store)
	conversationService := services.NewConversationService(store)
	ratingService := services.NewRatingService(store)
	bookingService := services.NewBookingService(
		store,
		cfg,
		conversationService,
		ratingService,
		cache.NewPropertyLocker(redisClient, cfg.BookingLockTTL),
		dispatcher,
		dispatcher,
		audit,
	)
	reviewService := services.NewReviewService(store, audit)
	emailTemplateService := services.NewEmailTemplateService(store)

	taskProcessor := tasks.NewTaskProcessor(cfg, compositeSender, pushSender, bookingService, emailTemplateService, logger)

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	// Start Service API (always runs)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(emailCapture, shutdownChan, logger),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Service API listening", zap.String("port", cfg.ServiceApiPort))
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Service API ListenAndServe error", zap.Error(err))
		}
	}()

	var mainApiSrv *http.Server
	var backgroundTaskSrv *asynq.Server

	logger.Info("Starting application", zap.String("mode", cfg.RunMode), zap.String("env", cfg.AppEnv))

	apiMode := func() {
		mainApiSrv = &http.Server{
			Addr: ":" + cfg.ApiPort,
			Handler: api.SetupRouter(ctx, cfg, api.Services{
				Bookings:      bookingService,
				Reviews:       reviewService,
				Conversations: conversationService,
			}, logger),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("Main API listening", zap.String("port", cfg.ApiPort))
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("Main API ListenAndServe error", zap.Error(err))
			}
		}()
	}

	bgMode := func() {
		srv, mux := tasks.SetupServer(cfg, taskProcessor)
		// Run would block on OS signals; shutdown is driven by the select below.
		if err := srv.Start(mux); err != nil {
			logger.Fatal("Background task server error", zap.Error(err))
		}
		backgroundTaskSrv = srv
		logger.Info("Background task server started")
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		logger.Fatal("Invalid run mode", zap.String("mode", cfg.RunMode))
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case <-shutdownChan:
		logger.Info("Shutdown requested via Service API")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		logger.Error("Service API server shutdown error", zap.Error(err))
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			logger.Error("Main API server shutdown error", zap.Error(err))
		}
	}
	if backgroundTaskSrv != nil {
		backgroundTaskSrv.Shutdown()
	}
	cancel()

	wg.Wait()
	logger.Info("Server gracefully stopped")
}

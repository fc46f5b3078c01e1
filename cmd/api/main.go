package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/relawan-api/internal/config"
	"github.com/noah-isme/relawan-api/internal/database"
	"github.com/noah-isme/relawan-api/internal/handler"
	"github.com/noah-isme/relawan-api/internal/middleware"
	"github.com/noah-isme/relawan-api/internal/notification"
	"github.com/noah-isme/relawan-api/internal/repository"
	"github.com/noah-isme/relawan-api/internal/router"
	"github.com/noah-isme/relawan-api/internal/service"
	"github.com/noah-isme/relawan-api/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL, cfg.AppEnv == "development")
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	var channels []service.NotificationChannel

	if cfg.ChannelEnabled(config.ChannelRedis) {
		var redisClient *redis.Client
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		channels = append(channels, service.NewRedisChannel(redisClient, cfg.NotificationPrefix))
	}

	if cfg.ChannelEnabled(config.ChannelNATS) {
		var natsConn *nats.Conn
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
		channels = append(channels, service.NewNATSChannel(natsConn, cfg.NotificationPrefix))
	}

	renderer, err := notification.NewRenderer(cfg.NotificationLocale, cfg.NotificationBaseURL)
	if err != nil {
		log.Fatalf("failed to create notification renderer: %v", err)
	}

	validate := utils.NewValidator()

	visitRepo := repository.NewVisitRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRecordRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	auditService := service.NewAuditService(auditRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, renderer, channels, logger)
	visitService := service.NewVisitService(service.VisitServiceDeps{
		DB:            db,
		Visits:        visitRepo,
		Users:         userRepo,
		Audit:         auditService,
		Notifications: notificationService,
		Validator:     validate,
		Reviewers:     cfg.Access.ReviewerRoles(),
	}, logger)

	consumerCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	notificationService.Start(consumerCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		DB:                  db,
		Logger:              logger,
		VisitHandler:        handler.NewVisitHandler(visitService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.StreamKeepAlive),
		AuditHandler:        handler.NewAuditHandler(auditService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Strs("notification_channels", cfg.NotificationChannels).Msg("server started")
	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

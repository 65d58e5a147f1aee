package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading/internal/config"
	"github.com/noah-isme/gema-grading/internal/database"
	"github.com/noah-isme/gema-grading/internal/handler"
	"github.com/noah-isme/gema-grading/internal/middleware"
	"github.com/noah-isme/gema-grading/internal/observability"
	"github.com/noah-isme/gema-grading/internal/repository"
	"github.com/noah-isme/gema-grading/internal/router"
	"github.com/noah-isme/gema-grading/internal/service"
	"github.com/noah-isme/gema-grading/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Service:    cfg.AppName,
	})

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, status cache disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Warn().Err(err).Msg("nats unavailable, grading events disabled")
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())

	assessmentRepo := repository.NewAssessmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	events := service.NewNATSEventPublisher(natsConn, cfg.NATSSubject)
	activityService := service.NewActivityService(activityRepo, log)
	gradingService := service.NewGradingService(submissionRepo, assessmentRepo, gradeRepo, events, activityService,
		service.GradingServiceConfig{BatchSize: cfg.RegradeBatchSize}, log)
	manualGradingService := service.NewManualGradingService(submissionRepo, assessmentRepo, gradeRepo, events, activityService, validate, log)
	submissionService := service.NewSubmissionService(submissionRepo, assessmentRepo, gradingService, validate, log)
	assessmentService := service.NewAssessmentService(assessmentRepo, validate, log)
	statusService := service.NewAssignmentStatusService(assessmentRepo, redisClient, cfg.StatusCacheTTL, log)
	courseGradeService := service.NewCourseGradeService(gradeRepo, log)

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &log,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    cfg.AccessLog,
	})
	router.Register(app, cfg, router.Dependencies{
		AssessmentHandler:  handler.NewAssessmentHandler(assessmentService, statusService, log),
		SubmissionHandler:  handler.NewSubmissionHandler(submissionService, log),
		GradingHandler:     handler.NewGradingHandler(gradingService, manualGradingService, activityService, log),
		CourseGradeHandler: handler.NewCourseGradeHandler(courseGradeService, log),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:       probes,
	})

	go func() {
		log.Info().Str("address", cfg.HTTPAddress()).Msg("starting http server")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, log)
}

func waitForShutdown(app *fiber.App, log zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	log.Info().Msg("server stopped")
}

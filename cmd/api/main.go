package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/config"
	"github.com/noah-isme/gema-assessment-api/internal/database"
	"github.com/noah-isme/gema-assessment-api/internal/events"
	"github.com/noah-isme/gema-assessment-api/internal/handler"
	"github.com/noah-isme/gema-assessment-api/internal/middleware"
	"github.com/noah-isme/gema-assessment-api/internal/observability"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
	"github.com/noah-isme/gema-assessment-api/internal/router"
	"github.com/noah-isme/gema-assessment-api/internal/service"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
	"github.com/noah-isme/gema-assessment-api/internal/validation"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(rootCtx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, statistics cache disabled")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, events go to redis only")
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}
	}

	var publisher events.Publisher = events.Nop{}
	if redisClient != nil || natsConn != nil {
		publisher = events.NewPublisher(redisClient, natsConn, cfg.EventsChannel, logger)
	}

	validate := validation.NewValidator()

	studentRepo := repository.NewStudentRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	statisticsService := service.NewStatisticsService(assessmentRepo, assignmentRepo, redisClient, cfg.StatsCacheTTL, logger)
	assessmentService := service.NewAssessmentService(assessmentRepo, assignmentRepo, studentRepo, validate, logger)
	assignmentService := service.NewAssignmentService(assessmentRepo, assignmentRepo, answerRepo, studentRepo, activityService, publisher, validate, cfg.TimerGracePeriod, logger)
	gradingService := service.NewGradingService(assessmentRepo, assignmentRepo, answerRepo, studentRepo, activityService, publisher, statisticsService, validate, logger)
	seedService := service.NewSeedService(studentRepo, cfg.SeedEnabled, cfg.SeedToken, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return utils.SendError(c, fiberErr.Code, fiberErr.Message)
			}
			logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled request error")
			return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
		},
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    cfg.AppEnv == "development",
	})
	app.Get("/metrics", observability.MetricsHandler())

	router.Register(app, cfg, router.Dependencies{
		AssessmentHandler:        handler.NewAssessmentHandler(assessmentService, statisticsService, logger),
		GradingHandler:           handler.NewGradingHandler(gradingService, logger),
		StudentAssessmentHandler: handler.NewStudentAssessmentHandler(assignmentService, logger),
		ActivityHandler:          handler.NewActivityHandler(activityService, logger),
		SeedHandler:              handler.NewSeedHandler(seedService, logger),
		JWTMiddleware:            middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:             healthProbes(db.DB, redisClient, natsConn),
	})

	go runExpirySweeper(rootCtx, assignmentService, cfg.TimerSweepInterval, logger)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-rootCtx.Done()
	waitForShutdown(app, logger)
}

// runExpirySweeper auto-submits supervised assignments whose countdown ran out
// even when the student never polls the timer again.
func runExpirySweeper(ctx context.Context, assignments service.AssignmentService, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		return
	}
	sweepLogger := logger.With().Str("component", "expiry_sweeper").Logger()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepID := "sweep-" + uuid.NewString()
			count, err := assignments.SweepExpired(middleware.ContextWithCorrelation(ctx, sweepID))
			if err != nil {
				sweepLogger.Error().Err(err).Str("correlation_id", sweepID).Msg("expiry sweep failed")
				continue
			}
			if count > 0 {
				sweepLogger.Info().Int("auto_submitted", count).Str("correlation_id", sweepID).Msg("expired assignments submitted")
			}
		}
	}
}

func healthProbes(sqlDB func() (*sql.DB, error), redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"database": func() error {
			conn, err := sqlDB()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return conn.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func() error {
			if !natsConn.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		}
	}
	return probes
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

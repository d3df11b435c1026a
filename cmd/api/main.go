package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/medsched/agenda-api/internal/config"
	appointmentHandler "github.com/medsched/agenda-api/internal/handler/appointment"
	authHandler "github.com/medsched/agenda-api/internal/handler/auth"
	healthHandler "github.com/medsched/agenda-api/internal/handler/health"
	patientHandler "github.com/medsched/agenda-api/internal/handler/patient"
	physicianHandler "github.com/medsched/agenda-api/internal/handler/physician"
	scheduleHandler "github.com/medsched/agenda-api/internal/handler/schedule"
	"github.com/medsched/agenda-api/internal/middleware"
	"github.com/medsched/agenda-api/internal/model"
	"github.com/medsched/agenda-api/internal/notification"
	"github.com/medsched/agenda-api/internal/repository"
	"github.com/medsched/agenda-api/internal/repository/postgres"
	"github.com/medsched/agenda-api/internal/router"
	appointmentService "github.com/medsched/agenda-api/internal/service/appointment"
	authService "github.com/medsched/agenda-api/internal/service/auth"
	availabilityService "github.com/medsched/agenda-api/internal/service/availability"
	patientService "github.com/medsched/agenda-api/internal/service/patient"
	physicianService "github.com/medsched/agenda-api/internal/service/physician"
	scheduleService "github.com/medsched/agenda-api/internal/service/schedule"
	"github.com/medsched/agenda-api/pkg/auth"
	"github.com/medsched/agenda-api/pkg/logger"
	messagingredis "github.com/medsched/agenda-api/pkg/messaging/redis"
	"github.com/medsched/agenda-api/pkg/metrics"
	"github.com/medsched/agenda-api/pkg/security"
	"github.com/medsched/agenda-api/pkg/worker"
)

func main() {
	// .env is for local development only; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := setupLogger(cfg.Log)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	scheduleRepo := postgres.NewScheduleRepository(db)
	apptRepo := postgres.NewAppointmentRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Shared infrastructure
	appMetrics := metrics.NewMetrics("agenda")
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	hasher := security.NewBcryptHasher(0)

	// Services
	authSvc := authService.NewService(userRepo, jwtSvc, hasher)
	availabilitySvc := availabilityService.NewService(scheduleRepo, apptRepo, appMetrics)
	appointmentSvc := appointmentService.NewService(apptRepo, patientRepo, outboxRepo, appMetrics)
	scheduleSvc := scheduleService.NewService(scheduleRepo)
	patientSvc := patientService.NewService(patientRepo)
	physicianSvc := physicianService.NewService(userRepo)

	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	// Handlers
	authH := authHandler.NewHandler(authSvc)
	healthH := healthHandler.NewHandler(db)
	appointmentH := appointmentHandler.NewHandler(appointmentSvc, availabilitySvc)
	scheduleH := scheduleHandler.NewHandler(scheduleSvc, authMiddleware.RequireRole(model.UserRolePhysician))
	patientH := patientHandler.NewHandler(patientSvc)
	physicianH := physicianHandler.NewHandler(physicianSvc)

	r := router.NewRouter(
		authMiddleware,
		authH,
		healthH,
		appointmentH,
		scheduleH,
		patientH,
		physicianH,
		router.Config{
			RateLimit:     rate.Limit(cfg.RateLimit.RPS),
			RateBurst:     cfg.RateLimit.Burst,
			CORSConfig:    middleware.DefaultCORSConfig(),
			MetricsPrefix: "agenda_http",
			ReleaseMode:   !cfg.Log.Pretty,
		},
	)
	r.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startOutboxProcessor(ctx, cfg, outboxRepo, userRepo, appLogger, appMetrics)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

func setupLogger(cfg config.LogConfig) *logger.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	return logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Pretty:     cfg.Pretty,
	})
}

// startOutboxProcessor wires the event pipeline. A broken Redis keeps the
// API up; events stay pending until the broker is back and the process
// restarts.
func startOutboxProcessor(
	ctx context.Context,
	cfg *config.Config,
	outboxRepo repository.OutboxRepository,
	userRepo repository.UserRepository,
	appLogger *logger.Logger,
	appMetrics *metrics.Metrics,
) {
	broker, err := messagingredis.NewRedisBroker(messagingredis.Config{
		URL:          cfg.Redis.URL,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, appLogger.Zerolog())
	if err != nil {
		log.Error().Err(err).Msg("redis unavailable, outbox processing disabled")
		return
	}

	notifier := notification.NewEmailNotifier(cfg.SMTP, userRepo, appLogger.Zerolog())

	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		notifier,
		worker.OutboxProcessorConfig{
			BatchSize:    cfg.Outbox.BatchSize,
			PollInterval: cfg.Outbox.PollInterval,
		},
		appLogger,
		appMetrics,
	)

	go processor.Start(ctx)
}

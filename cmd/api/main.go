package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/collections-notifier/internal/calendar"
	"github.com/jwalitptl/collections-notifier/internal/config"
	healthHandler "github.com/jwalitptl/collections-notifier/internal/handler/health"
	obligationHandler "github.com/jwalitptl/collections-notifier/internal/handler/obligation"
	scheduleHandler "github.com/jwalitptl/collections-notifier/internal/handler/schedule"
	"github.com/jwalitptl/collections-notifier/internal/middleware"
	"github.com/jwalitptl/collections-notifier/internal/notifier/email"
	"github.com/jwalitptl/collections-notifier/internal/notifier/whatsapp"
	"github.com/jwalitptl/collections-notifier/internal/repository/postgres"
	"github.com/jwalitptl/collections-notifier/internal/router"
	"github.com/jwalitptl/collections-notifier/internal/service/dispatch"
	"github.com/jwalitptl/collections-notifier/internal/service/scanner"
	scheduleService "github.com/jwalitptl/collections-notifier/internal/service/schedule"
	"github.com/jwalitptl/collections-notifier/internal/service/sweep"
	templateService "github.com/jwalitptl/collections-notifier/internal/service/template"
	"github.com/jwalitptl/collections-notifier/pkg/logger"
	"github.com/jwalitptl/collections-notifier/pkg/messaging"
	redisBroker "github.com/jwalitptl/collections-notifier/pkg/messaging/redis"
	"github.com/jwalitptl/collections-notifier/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	appLogger := logger.FromZerolog(log.Logger)
	componentLogger := func(name string) *logger.Logger {
		return appLogger.WithFields(map[string]interface{}{"component": name})
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	clock, err := calendar.New(cfg.Notify.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load notification timezone")
	}

	baseRepo := postgres.NewBaseRepository(db)
	obligationRepo := postgres.NewObligationRepository(baseRepo)
	templateRepo := postgres.NewTemplateRepository(baseRepo)

	registry := prometheus.NewRegistry()
	appMetrics := metrics.New("collections_notifier")
	if err := appMetrics.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redisBroker.NewRedisBroker(redisBroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()
	} else {
		log.Warn().Msg("redis not configured, sweep reports will not be published")
	}

	resolver := templateService.NewResolver(templateRepo, time.Duration(cfg.Notify.TemplateCacheTTLSecs)*time.Second)
	waClient := whatsapp.NewClient(whatsapp.Config{
		BaseURL: cfg.WhatsApp.BaseURL,
		Token:   cfg.WhatsApp.Token,
		Timeout: time.Duration(cfg.WhatsApp.TimeoutSeconds) * time.Second,
	})
	emailSender := email.NewSender(cfg.SMTP)

	coordinator := dispatch.NewCoordinator(obligationRepo, resolver, waClient, emailSender, dispatch.Config{
		DeliveryTimeout: cfg.Notify.DeliveryTimeout(),
		MaxConcurrent:   cfg.Notify.MaxConcurrent,
		RatePerSecond:   cfg.Notify.RatePerSecond,
		RateBurst:       cfg.Notify.RateBurst,
	}, componentLogger("dispatch"), appMetrics)

	scanSvc := scanner.NewService(obligationRepo, clock, cfg.Notify.Milestones, componentLogger("scanner"))
	sweepSvc := sweep.NewService(scanSvc, coordinator, broker, cfg.Notify.ReportChannel, componentLogger("sweep"), appMetrics)

	schedCfg, err := cfg.Schedule.ToScheduleConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid schedule configuration")
	}
	scheduler, err := scheduleService.New(schedCfg, clock.Location(), sweepSvc, componentLogger("scheduler"), appMetrics)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if cfg.Schedule.AutoStart {
		if err := scheduler.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start scheduler")
		}
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)
	r := router.NewRouter(
		authMiddleware,
		healthHandler.NewHandler(db, registry),
		scheduleHandler.NewHandler(scheduler),
		obligationHandler.NewHandler(obligationRepo, clock),
		registry,
		"collections_api",
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

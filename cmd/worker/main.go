package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/collections-notifier/internal/calendar"
	"github.com/jwalitptl/collections-notifier/internal/config"
	"github.com/jwalitptl/collections-notifier/internal/notifier/email"
	"github.com/jwalitptl/collections-notifier/internal/notifier/whatsapp"
	"github.com/jwalitptl/collections-notifier/internal/repository/postgres"
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

func setupHealthCheck(registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			log.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	appLogger := logger.FromZerolog(log.Logger)
	componentLogger := func(name string) *logger.Logger {
		return appLogger.WithFields(map[string]interface{}{"component": name})
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	clock, err := calendar.New(cfg.Notify.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load notification timezone")
	}

	baseRepo := postgres.NewBaseRepository(db)
	obligationRepo := postgres.NewObligationRepository(baseRepo)
	templateRepo := postgres.NewTemplateRepository(baseRepo)

	registry := prometheus.NewRegistry()
	appMetrics := metrics.New("collections_worker")
	if err := appMetrics.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
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
			log.Fatal().Err(err).Msg("Failed to create Redis broker")
		}
		defer broker.Close()
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
		log.Fatal().Err(err).Msg("Invalid schedule configuration")
	}
	scheduler, err := scheduleService.New(schedCfg, clock.Location(), sweepSvc, componentLogger("scheduler"), appMetrics)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	setupHealthCheck(registry)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down...")
	scheduler.Stop()
}

package sweep

import (
	"context"
	"time"

	"github.com/jwalitptl/collections-notifier/internal/model"
	"github.com/jwalitptl/collections-notifier/internal/service/dispatch"
	"github.com/jwalitptl/collections-notifier/internal/service/scanner"
	"github.com/jwalitptl/collections-notifier/pkg/logger"
	"github.com/jwalitptl/collections-notifier/pkg/messaging"
	"github.com/jwalitptl/collections-notifier/pkg/metrics"
)

// Service runs one full scan+dispatch cycle and publishes the resulting
// report summary for downstream consumers. It is the Runner behind the
// recurrence scheduler and the manual trigger.
type Service struct {
	scanner       *scanner.Service
	coordinator   *dispatch.Coordinator
	broker        messaging.Broker
	reportChannel string
	logger        *logger.Logger
	metrics       *metrics.Metrics
}

func NewService(
	sc *scanner.Service,
	coordinator *dispatch.Coordinator,
	broker messaging.Broker,
	reportChannel string,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		scanner:       sc,
		coordinator:   coordinator,
		broker:        broker,
		reportChannel: reportChannel,
		logger:        log,
		metrics:       m,
	}
}

func (s *Service) RunSweep(ctx context.Context) (*model.RunReport, error) {
	started := time.Now()

	candidates, scanned, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	report := s.coordinator.RunOnce(ctx, candidates, scanned)

	s.metrics.SweepsTotal.Inc()
	s.metrics.SweepDuration.Observe(time.Since(started).Seconds())
	s.metrics.ObligationsScanned.Set(float64(scanned))

	s.logger.Info("sweep completed",
		"scanned", scanned,
		"candidates", len(candidates),
		"sent", len(report.Successes),
		"failed", len(report.Failures),
		"duration", time.Since(started).String())

	if s.broker != nil {
		msg := messaging.Message{Type: "sweep_report", Payload: report.Summary()}
		if err := s.broker.Publish(ctx, s.reportChannel, msg); err != nil {
			s.logger.Error(err, "failed to publish sweep report")
		}
	}

	return report, nil
}

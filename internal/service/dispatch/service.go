package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/collections-notifier/internal/model"
	"github.com/jwalitptl/collections-notifier/internal/notifier"
	"github.com/jwalitptl/collections-notifier/internal/service/scanner"
	"github.com/jwalitptl/collections-notifier/internal/service/template"
	"github.com/jwalitptl/collections-notifier/pkg/logger"
	"github.com/jwalitptl/collections-notifier/pkg/metrics"
)

// MarkerStore is the slice of the obligation repository the coordinator
// needs: the authoritative read and compare-and-set over delivery markers.
type MarkerStore interface {
	IsNotified(ctx context.Context, id uuid.UUID, ch model.Channel, milestone int) (bool, error)
	MarkNotified(ctx context.Context, id uuid.UUID, ch model.Channel, milestone int) (bool, error)
}

type Config struct {
	DeliveryTimeout time.Duration
	MaxConcurrent   int
	RatePerSecond   float64
	RateBurst       int
}

// Coordinator fans dispatch attempts out per (obligation, channel) pair.
// Attempts are independent: a failed pair is recorded and the run
// continues. The marker is set only after a delivery attempt reports
// success; a compare-and-set loss means another run already delivered and
// counts as success without a second send being recorded.
type Coordinator struct {
	markers  MarkerStore
	resolver *template.Resolver
	whatsapp notifier.WhatsAppSender
	email    notifier.EmailSender
	limiter  *rate.Limiter
	config   Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewCoordinator(
	markers MarkerStore,
	resolver *template.Resolver,
	whatsapp notifier.WhatsAppSender,
	email notifier.EmailSender,
	config Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Coordinator {
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = 15 * time.Second
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 8
	}
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = 5
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 10
	}

	return &Coordinator{
		markers:  markers,
		resolver: resolver,
		whatsapp: whatsapp,
		email:    email,
		limiter:  rate.NewLimiter(rate.Limit(config.RatePerSecond), config.RateBurst),
		config:   config,
		logger:   log,
		metrics:  m,
	}
}

type job struct {
	candidate scanner.Candidate
	channel   model.Channel
}

// RunOnce attempts delivery for every candidate channel pair and returns
// the aggregated report. Pairs fan out over a bounded worker pool; the
// report is the only shared state and is guarded by a mutex.
func (c *Coordinator) RunOnce(ctx context.Context, candidates []scanner.Candidate, scanned int) *model.RunReport {
	report := model.NewRunReport()
	report.Scanned = scanned

	jobs := make(chan job)
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := c.config.MaxConcurrent
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				c.dispatchOne(ctx, j, report, &mu)
			}
		}()
	}

	for _, cand := range candidates {
		for _, ch := range cand.Channels {
			jobs <- job{candidate: cand, channel: ch}
		}
	}
	close(jobs)
	wg.Wait()

	report.FinishedAt = time.Now()
	return report
}

func (c *Coordinator) dispatchOne(ctx context.Context, j job, report *model.RunReport, mu *sync.Mutex) {
	ob := j.candidate.Obligation
	milestone := j.candidate.DueMilestone
	ch := j.channel

	dest, ok := ob.ContactFor(ch)
	if !ok {
		return
	}

	// Authoritative re-check; the scanner snapshot may be stale by now.
	notified, err := c.markers.IsNotified(ctx, ob.ID, ch, milestone)
	if err != nil {
		c.metrics.DatabaseOperations.WithLabelValues("read_marker", "error").Inc()
		c.recordFailure(report, mu, ob.ID, ch, milestone, fmt.Sprintf("marker read failed: %v", err))
		return
	}
	c.metrics.DatabaseOperations.WithLabelValues("read_marker", "success").Inc()
	if notified {
		c.logger.Debug("marker already confirmed, skipping",
			"obligation_id", ob.ID.String(), "channel", string(ch), "milestone", milestone)
		return
	}

	tpl, err := c.resolver.Resolve(ctx, ch, milestone, ob.PartyType)
	if err != nil {
		c.recordFailure(report, mu, ob.ID, ch, milestone, fmt.Sprintf("template resolution failed: %v", err))
		return
	}
	subject, body := c.resolver.Render(tpl, c.variables(ob, dest, j.candidate.ElapsedDays))

	if err := c.limiter.Wait(ctx); err != nil {
		c.recordFailure(report, mu, ob.ID, ch, milestone, fmt.Sprintf("rate limiter wait canceled: %v", err))
		return
	}

	if err := c.deliver(ctx, ch, ob, dest, subject, body); err != nil {
		c.recordFailure(report, mu, ob.ID, ch, milestone, err.Error())
		c.logger.Warn("delivery attempt failed",
			"obligation_id", ob.ID.String(), "channel", string(ch),
			"milestone", milestone, "error", err.Error())
		return
	}

	committed, err := c.markers.MarkNotified(ctx, ob.ID, ch, milestone)
	if err != nil {
		// The message went out but the marker did not commit; surface it
		// so operators know the next cycle may send a duplicate.
		c.metrics.DatabaseOperations.WithLabelValues("mark_notified", "error").Inc()
		c.recordFailure(report, mu, ob.ID, ch, milestone, fmt.Sprintf("delivered but marker update failed: %v", err))
		return
	}
	c.metrics.DatabaseOperations.WithLabelValues("mark_notified", "success").Inc()
	if !committed {
		// Lost the compare-and-set to a concurrent run: the tuple was
		// already confirmed. Idempotent success, not counted twice.
		c.metrics.MarkerConflicts.Inc()
		return
	}

	mu.Lock()
	report.SentByChannel[ch]++
	report.Successes = append(report.Successes, model.DispatchSuccess{
		ObligationID:  ob.ID,
		ReferenceCode: ob.ReferenceCode,
		DebtorName:    ob.DebtorName,
		Channel:       ch,
		Destination:   dest,
		Milestone:     milestone,
	})
	mu.Unlock()
	c.metrics.Deliveries.WithLabelValues(string(ch), "success").Inc()
}

func (c *Coordinator) deliver(ctx context.Context, ch model.Channel, ob *model.Obligation, dest, subject, body string) error {
	sendCtx, cancel := context.WithTimeout(ctx, c.config.DeliveryTimeout)
	defer cancel()

	switch ch {
	case model.ChannelWhatsApp:
		return c.whatsapp.Send(sendCtx, dest, body)
	case model.ChannelEmail:
		return c.email.Send(sendCtx, dest, ob.DebtorName, subject, htmlBody(body), body)
	default:
		return fmt.Errorf("unsupported channel: %s", ch)
	}
}

func (c *Coordinator) recordFailure(report *model.RunReport, mu *sync.Mutex, id uuid.UUID, ch model.Channel, milestone int, reason string) {
	mu.Lock()
	report.Failures = append(report.Failures, model.DispatchFailure{
		ObligationID: id,
		Channel:      ch,
		Milestone:    milestone,
		Reason:       reason,
	})
	mu.Unlock()
	c.metrics.Deliveries.WithLabelValues(string(ch), "failure").Inc()
}

func (c *Coordinator) variables(ob *model.Obligation, dest string, elapsed int) map[string]string {
	return map[string]string{
		template.VarRecipientName: ob.DebtorName,
		template.VarDestination:   dest,
		template.VarKind:          ob.Kind,
		template.VarAmount:        fmt.Sprintf("%.2f %s", ob.AmountAdjusted, ob.Currency),
		template.VarElapsedDays:   strconv.Itoa(elapsed),
	}
}

func htmlBody(text string) string {
	return "<p>" + strings.ReplaceAll(text, "\n", "<br>") + "</p>"
}

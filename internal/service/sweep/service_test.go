package sweep

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/collections-notifier/internal/calendar"
	"github.com/jwalitptl/collections-notifier/internal/model"
	"github.com/jwalitptl/collections-notifier/internal/service/dispatch"
	"github.com/jwalitptl/collections-notifier/internal/service/scanner"
	"github.com/jwalitptl/collections-notifier/internal/service/template"
	"github.com/jwalitptl/collections-notifier/pkg/logger"
	"github.com/jwalitptl/collections-notifier/pkg/messaging"
	"github.com/jwalitptl/collections-notifier/pkg/metrics"
)

// memoryRepo backs both the scanner listing and the marker store, so a
// committed marker is visible to the next sweep the way a database row
// update would be.
type memoryRepo struct {
	mu          sync.Mutex
	obligations []*model.Obligation
}

func (r *memoryRepo) ListOpen(ctx context.Context) ([]*model.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Obligation, 0, len(r.obligations))
	for _, ob := range r.obligations {
		copied := *ob
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id uuid.UUID) (*model.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ob := range r.obligations {
		if ob.ID == id {
			copied := *ob
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) IsNotified(ctx context.Context, id uuid.UUID, ch model.Channel, milestone int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ob := range r.obligations {
		if ob.ID == id {
			return ob.MilestoneState.Notified(ch, milestone), nil
		}
	}
	return false, nil
}

func (r *memoryRepo) MarkNotified(ctx context.Context, id uuid.UUID, ch model.Channel, milestone int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ob := range r.obligations {
		if ob.ID != id {
			continue
		}
		if ob.MilestoneState.Notified(ch, milestone) {
			return false, nil
		}
		ob.MilestoneState.FlagsFor(ch)[milestone] = true
		if milestone > ob.MilestoneState.LastMilestoneFired {
			ob.MilestoneState.LastMilestoneFired = milestone
		}
		return true, nil
	}
	return false, nil
}

func (r *memoryRepo) ResetMarkers(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ob := range r.obligations {
		if ob.ID == id {
			ob.MilestoneState = model.NewMilestoneState()
		}
	}
	return nil
}

type countingSender struct {
	mu    sync.Mutex
	count int
}

func (s *countingSender) Send(ctx context.Context, phone, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return nil
}

type countingEmail struct {
	mu    sync.Mutex
	count int
}

func (s *countingEmail) Send(ctx context.Context, to, displayName, subject, htmlBody, textBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return nil
}

type emptyTemplateRepo struct{}

func (emptyTemplateRepo) Find(ctx context.Context, ch model.Channel, milestone int, pt model.PartyType) (*model.MessageTemplate, error) {
	return nil, nil
}

func (emptyTemplateRepo) FindGeneric(ctx context.Context, ch model.Channel, milestone int) (*model.MessageTemplate, error) {
	return nil, nil
}

type recordingBroker struct {
	mu       sync.Mutex
	channels []string
	payloads []interface{}
}

func (b *recordingBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	b.payloads = append(b.payloads, message)
	return nil
}

func (b *recordingBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (b *recordingBroker) Close() error { return nil }

func strPtr(s string) *string { return &s }

func TestRunSweepEndToEnd(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	clock, err := calendar.NewWithNow("UTC", func() time.Time { return now })
	require.NoError(t, err)

	repo := &memoryRepo{obligations: []*model.Obligation{{
		ID:             uuid.New(),
		ReferenceCode:  "REF-777",
		DebtorName:     "Elisa Moura",
		PartyType:      model.PartyTypeIndividual,
		Kind:           "invoice",
		AmountAdjusted: 312.90,
		Currency:       "BRL",
		Phone:          strPtr("+5511977776666"),
		Email:          strPtr("elisa@example.com"),
		Status:         model.ObligationStatusOpen,
		MilestoneState: model.NewMilestoneState(),
		CreatedAt:      now.AddDate(0, 0, -7),
	}}}

	wa := &countingSender{}
	em := &countingEmail{}
	appMetrics := metrics.New("sweeptest")
	appLogger := logger.NewLogger(nil)

	resolver := template.NewResolver(emptyTemplateRepo{}, time.Minute)
	coordinator := dispatch.NewCoordinator(repo, resolver, wa, em, dispatch.Config{
		RatePerSecond: 1000,
		RateBurst:     1000,
	}, appLogger, appMetrics)
	scanSvc := scanner.NewService(repo, clock, []int{3, 7, 15, 30}, appLogger)
	broker := &recordingBroker{}

	svc := NewService(scanSvc, coordinator, broker, "collections.sweep_reports", appLogger, appMetrics)

	report, err := svc.RunSweep(context.Background())
	require.NoError(t, err)

	// Seven elapsed days cross the 7-day milestone on both channels.
	assert.Equal(t, 1, report.Scanned)
	assert.Len(t, report.Successes, 2)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 1, wa.count)
	assert.Equal(t, 1, em.count)

	require.Len(t, broker.channels, 1)
	assert.Equal(t, "collections.sweep_reports", broker.channels[0])
	msg, ok := broker.payloads[0].(messaging.Message)
	require.True(t, ok)
	assert.Equal(t, "sweep_report", msg.Type)
	summary, ok := msg.Payload.(model.ReportSummary)
	require.True(t, ok)
	assert.Equal(t, 1, summary.Scanned)

	// A second sweep on the same day finds everything already confirmed.
	report, err = svc.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Successes)
	assert.Equal(t, 1, wa.count)
	assert.Equal(t, 1, em.count)
}

func TestRunSweepAfterResetReNotifies(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	clock, err := calendar.NewWithNow("UTC", func() time.Time { return now })
	require.NoError(t, err)

	id := uuid.New()
	repo := &memoryRepo{obligations: []*model.Obligation{{
		ID:             id,
		DebtorName:     "Fabio Costa",
		PartyType:      model.PartyTypeOrganization,
		Kind:           "contract",
		AmountAdjusted: 5400.00,
		Currency:       "BRL",
		Phone:          strPtr("+5511966665555"),
		Status:         model.ObligationStatusOpen,
		MilestoneState: model.NewMilestoneState(),
		CreatedAt:      now.AddDate(0, 0, -3),
	}}}

	wa := &countingSender{}
	appMetrics := metrics.New("sweepresettest")
	appLogger := logger.NewLogger(nil)
	resolver := template.NewResolver(emptyTemplateRepo{}, time.Minute)
	coordinator := dispatch.NewCoordinator(repo, resolver, wa, &countingEmail{}, dispatch.Config{
		RatePerSecond: 1000,
		RateBurst:     1000,
	}, appLogger, appMetrics)
	scanSvc := scanner.NewService(repo, clock, []int{3, 7, 15, 30}, appLogger)

	svc := NewService(scanSvc, coordinator, nil, "", appLogger, appMetrics)

	_, err = svc.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, wa.count)

	require.NoError(t, repo.ResetMarkers(context.Background(), id))

	_, err = svc.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, wa.count)
}

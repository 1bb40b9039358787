package scanner

import (
	"context"
	"fmt"
	"sort"

	"github.com/jwalitptl/collections-notifier/internal/calendar"
	"github.com/jwalitptl/collections-notifier/internal/model"
	"github.com/jwalitptl/collections-notifier/internal/repository"
	"github.com/jwalitptl/collections-notifier/pkg/logger"
)

// Candidate is one obligation that crossed a milestone, together with the
// channels still worth attempting for it.
type Candidate struct {
	Obligation   *model.Obligation
	DueMilestone int
	ElapsedDays  int
	Channels     []model.Channel
}

type Service struct {
	repo       repository.ObligationRepository
	clock      *calendar.Clock
	milestones []int
	logger     *logger.Logger
}

func NewService(repo repository.ObligationRepository, clock *calendar.Clock, milestones []int, log *logger.Logger) *Service {
	sorted := append([]int(nil), milestones...)
	sort.Ints(sorted)
	return &Service{
		repo:       repo,
		clock:      clock,
		milestones: sorted,
		logger:     log,
	}
}

// Scan produces a fresh candidate set from the open obligations. Invalid
// rows are skipped with a logged reason and never abort the cycle. The
// returned count is the total number of obligations examined.
func (s *Service) Scan(ctx context.Context) ([]Candidate, int, error) {
	obligations, err := s.repo.ListOpen(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load open obligations: %w", err)
	}

	candidates := make([]Candidate, 0, len(obligations))
	for _, ob := range obligations {
		if ob.Status != model.ObligationStatusOpen {
			continue
		}

		elapsed, err := s.clock.ElapsedDays(ob.CreatedAt)
		if err != nil {
			s.logger.Warn("skipping obligation with invalid creation timestamp",
				"obligation_id", ob.ID.String(), "error", err.Error())
			continue
		}

		due, ok := s.dueMilestone(elapsed, ob.MilestoneState.LastMilestoneFired)
		if !ok {
			continue
		}

		channels := s.eligibleChannels(ob, due)
		if len(channels) == 0 {
			continue
		}

		candidates = append(candidates, Candidate{
			Obligation:   ob,
			DueMilestone: due,
			ElapsedDays:  elapsed,
			Channels:     channels,
		})
	}

	return candidates, len(obligations), nil
}

// dueMilestone picks the single highest milestone that elapsed days have
// crossed and that is above the last fired one. When a sweep was skipped
// long enough for several milestones to pass, the intermediates are
// deliberately treated as missed rather than backfilled, so a debtor never
// receives a burst of overdue reminders in one cycle.
func (s *Service) dueMilestone(elapsed, lastFired int) (int, bool) {
	due := 0
	found := false
	for _, m := range s.milestones {
		if m <= elapsed && m > lastFired {
			due = m
			found = true
		}
	}
	return due, found
}

// eligibleChannels filters each channel independently: it must have a
// destination contact and its own marker for the due milestone unset.
func (s *Service) eligibleChannels(ob *model.Obligation, milestone int) []model.Channel {
	var channels []model.Channel
	for _, ch := range model.Channels {
		if _, ok := ob.ContactFor(ch); !ok {
			continue
		}
		if ob.MilestoneState.Notified(ch, milestone) {
			continue
		}
		channels = append(channels, ch)
	}
	return channels
}

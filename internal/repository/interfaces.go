package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/collections-notifier/internal/model"
)

// ObligationRepository is the queryable data source for open obligations
// plus the marker store for their notification state. MarkNotified is the
// single point of truth that a message was confirmed delivered for an
// (obligation, channel, milestone) tuple; it must only be called after a
// delivery attempt reported success.
type ObligationRepository interface {
	ListOpen(ctx context.Context) ([]*model.Obligation, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Obligation, error)

	IsNotified(ctx context.Context, id uuid.UUID, ch model.Channel, milestone int) (bool, error)
	// MarkNotified is a compare-and-set: it commits only when the flag is
	// still unset and returns false when another run got there first. It
	// also raises last_milestone_fired to max(previous, milestone).
	MarkNotified(ctx context.Context, id uuid.UUID, ch model.Channel, milestone int) (bool, error)
	// ResetMarkers clears every channel/milestone flag. Support and
	// testing operation only; callers must audit it.
	ResetMarkers(ctx context.Context, id uuid.UUID) error
}

// TemplateRepository is the read-only lookup over externally managed
// message templates. Lookups return (nil, nil) when no row matches so the
// resolver can continue its fallback chain.
type TemplateRepository interface {
	Find(ctx context.Context, ch model.Channel, milestone int, partyType model.PartyType) (*model.MessageTemplate, error)
	FindGeneric(ctx context.Context, ch model.Channel, milestone int) (*model.MessageTemplate, error)
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jwalitptl/collections-notifier/internal/model"
	"github.com/jwalitptl/collections-notifier/internal/repository"
)

type templateRepository struct {
	BaseRepository
}

func NewTemplateRepository(base BaseRepository) repository.TemplateRepository {
	return &templateRepository{base}
}

func (r *templateRepository) Find(ctx context.Context, ch model.Channel, milestone int, partyType model.PartyType) (*model.MessageTemplate, error) {
	query := `
		SELECT id, channel, milestone, party_type, subject, body
		FROM message_templates
		WHERE channel = $1 AND milestone = $2 AND party_type = $3
	`

	var tpl model.MessageTemplate
	err := r.db.GetContext(ctx, &tpl, query, ch, milestone, partyType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find template: %w", err)
	}
	return &tpl, nil
}

func (r *templateRepository) FindGeneric(ctx context.Context, ch model.Channel, milestone int) (*model.MessageTemplate, error) {
	query := `
		SELECT id, channel, milestone, party_type, subject, body
		FROM message_templates
		WHERE channel = $1 AND milestone = $2 AND party_type IS NULL
	`

	var tpl model.MessageTemplate
	err := r.db.GetContext(ctx, &tpl, query, ch, milestone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find generic template: %w", err)
	}
	return &tpl, nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/jwalitptl/collections-notifier/internal/model"
	"github.com/jwalitptl/collections-notifier/internal/repository"
	apperrors "github.com/jwalitptl/collections-notifier/pkg/errors"
)

type obligationRepository struct {
	BaseRepository
}

func NewObligationRepository(base BaseRepository) repository.ObligationRepository {
	return &obligationRepository{base}
}

const obligationColumns = `
	id, reference_code, debtor_name, party_type, tax_id, kind,
	amount_original, amount_adjusted, currency, phone, email,
	status, milestone_state, created_at, updated_at
`

func (r *obligationRepository) ListOpen(ctx context.Context) ([]*model.Obligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM obligations
		WHERE status = $1
		ORDER BY created_at ASC
	`

	var obligations []*model.Obligation
	err := r.db.SelectContext(ctx, &obligations, query, model.ObligationStatusOpen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list open obligations: %w", err)
	}
	return obligations, nil
}

func (r *obligationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Obligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM obligations
		WHERE id = $1
	`

	var obligation model.Obligation
	if err := r.db.GetContext(ctx, &obligation, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("obligation", err)
		}
		return nil, fmt.Errorf("failed to get obligation: %w", err)
	}
	return &obligation, nil
}

func (r *obligationRepository) IsNotified(ctx context.Context, id uuid.UUID, ch model.Channel, milestone int) (bool, error) {
	query := `
		SELECT COALESCE((milestone_state -> $2 ->> $3)::boolean, false)
		FROM obligations
		WHERE id = $1
	`

	var notified bool
	err := r.db.GetContext(ctx, &notified, query, id, string(ch), strconv.Itoa(milestone))
	if err != nil {
		return false, fmt.Errorf("failed to read notification marker: %w", err)
	}
	return notified, nil
}

// MarkNotified commits the marker only when it is still unset; the WHERE
// clause makes the update a compare-and-set so concurrent runs cannot
// double-commit the same tuple. RowsAffected == 0 means somebody else won.
func (r *obligationRepository) MarkNotified(ctx context.Context, id uuid.UUID, ch model.Channel, milestone int) (bool, error) {
	if !ch.Valid() {
		return false, fmt.Errorf("invalid channel: %q", ch)
	}

	query := `
		UPDATE obligations
		SET milestone_state = jsonb_set(
				jsonb_set(milestone_state, ARRAY[$2, $3], 'true'::jsonb, true),
				'{last_milestone_fired}',
				to_jsonb(GREATEST(COALESCE((milestone_state ->> 'last_milestone_fired')::int, -1), $4))
			),
			updated_at = NOW()
		WHERE id = $1
		  AND COALESCE((milestone_state -> $2 ->> $3)::boolean, false) = false
	`

	result, err := r.db.ExecContext(ctx, query, id, string(ch), strconv.Itoa(milestone), milestone)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows == 1, nil
}

func (r *obligationRepository) ResetMarkers(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE obligations
		SET milestone_state = $2,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, model.NewMilestoneState())
	if err != nil {
		return fmt.Errorf("failed to reset markers: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("obligation", sql.ErrNoRows)
	}
	return nil
}

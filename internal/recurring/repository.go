package recurring

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository handles recurring template persistence in Postgres
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new recurring template repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const templateColumns = `id, group_id, created_by, payer_id, description, amount, split_type, participants,
	frequency, start_date, end_date, next_execution_date, active, created_at`

func scanTemplate(row interface{ Scan(...any) error }) (*Template, error) {
	t := &Template{}
	var participants []byte
	var endDate sql.NullTime
	err := row.Scan(
		&t.ID,
		&t.GroupID,
		&t.CreatedBy,
		&t.PayerID,
		&t.Description,
		&t.Amount,
		&t.SplitType,
		&participants,
		&t.Frequency,
		&t.StartDate,
		&endDate,
		&t.NextExecutionDate,
		&t.Active,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if endDate.Valid {
		t.EndDate = &endDate.Time
	}
	if err := json.Unmarshal(participants, &t.Participants); err != nil {
		return nil, fmt.Errorf("decode participants of template %d: %w", t.ID, err)
	}
	return t, nil
}

// Create inserts a new template
func (r *Repository) Create(ctx context.Context, t *Template) (*Template, error) {
	participants, err := json.Marshal(t.Participants)
	if err != nil {
		return nil, fmt.Errorf("failed to encode participants: %w", err)
	}

	query := `
		INSERT INTO recurring_templates (group_id, created_by, payer_id, description, amount, split_type,
			participants, frequency, start_date, end_date, next_execution_date, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + templateColumns

	created, err := scanTemplate(r.db.QueryRowContext(ctx, query,
		t.GroupID,
		t.CreatedBy,
		t.PayerID,
		t.Description,
		t.Amount,
		t.SplitType,
		participants,
		t.Frequency,
		t.StartDate,
		t.EndDate,
		t.NextExecutionDate,
		t.Active,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create recurring template: %w", err)
	}

	return created, nil
}

// GetByID retrieves a template by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM recurring_templates WHERE id = $1`

	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recurring template: %w", err)
	}

	return t, nil
}

// ListByGroupID retrieves a group's templates
func (r *Repository) ListByGroupID(ctx context.Context, groupID int64) ([]*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM recurring_templates WHERE group_id = $1 ORDER BY id`
	return r.list(ctx, query, groupID)
}

// ListDue retrieves the active templates due on or before today
func (r *Repository) ListDue(ctx context.Context, today time.Time) ([]*Template, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM recurring_templates
		WHERE active
		  AND next_execution_date <= $1
		  AND start_date <= $1
		  AND (end_date IS NULL OR end_date >= $1)
		ORDER BY next_execution_date, id
	`
	return r.list(ctx, query, today)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*Template, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring templates: %w", err)
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring template: %w", err)
		}
		templates = append(templates, t)
	}

	return templates, rows.Err()
}

// AdvanceSchedule compares and sets the next execution date in one statement
func (r *Repository) AdvanceSchedule(ctx context.Context, id int64, due, next time.Time, active bool) (bool, error) {
	query := `
		UPDATE recurring_templates
		SET next_execution_date = $3::date, active = $4
		WHERE id = $1 AND next_execution_date = $2::date
		RETURNING id
	`

	var claimed int64
	err := r.db.QueryRowContext(ctx, query, id, due, next, active).Scan(&claimed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to advance recurring template schedule: %w", err)
	}
	return true, nil
}

// Delete removes a template
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM recurring_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recurring template: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrTemplateNotFound
	}

	return nil
}

package balance

import (
	"context"
	"database/sql"
	"fmt"
)

// Row is an amount as stored, before parsing
type Row struct {
	UserID int64
	Amount string
}

// Repository reads a group's payments and shares from Postgres
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new balance repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListPaymentRows returns every payment made toward the group's expenses
func (r *Repository) ListPaymentRows(ctx context.Context, groupID int64) ([]Row, error) {
	query := `
		SELECT p.user_id, p.amount::text
		FROM expense_payments p
		JOIN expenses e ON e.id = p.expense_id
		WHERE e.group_id = $1
	`
	return r.rows(ctx, "payments", query, groupID)
}

// ListShareRows returns every share allocated on the group's expenses
func (r *Repository) ListShareRows(ctx context.Context, groupID int64) ([]Row, error) {
	query := `
		SELECT s.user_id, s.amount::text
		FROM expense_shares s
		JOIN expenses e ON e.id = s.expense_id
		WHERE e.group_id = $1
	`
	return r.rows(ctx, "shares", query, groupID)
}

func (r *Repository) rows(ctx context.Context, what, query string, groupID int64) ([]Row, error) {
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", what, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		var amount sql.NullString
		if err := rows.Scan(&row.UserID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", what, err)
		}
		row.Amount = amount.String
		out = append(out, row)
	}

	return out, rows.Err()
}

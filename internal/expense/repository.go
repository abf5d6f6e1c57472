package expense

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fkhayef/splitledger/internal/expense/split"
)

// Repository handles expense, payment and share persistence in Postgres
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new expense repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const expenseColumns = `id, group_id, created_by, description, amount, split_type, template_id, created_at, updated_at`

func scanExpense(row interface{ Scan(...any) error }) (*Expense, error) {
	expense := &Expense{}
	err := row.Scan(
		&expense.ID,
		&expense.GroupID,
		&expense.CreatedBy,
		&expense.Description,
		&expense.Amount,
		&expense.SplitType,
		&expense.TemplateID,
		&expense.CreatedAt,
		&expense.UpdatedAt,
	)
	return expense, err
}

// CreateExpense inserts the expense with its payments and shares in one transaction
func (r *Repository) CreateExpense(ctx context.Context, e *Expense, payments []Payment, shares []split.Share) (*Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO expenses (group_id, created_by, description, amount, split_type, template_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + expenseColumns

	created, err := scanExpense(tx.QueryRowContext(ctx, query,
		e.GroupID,
		e.CreatedBy,
		e.Description,
		e.Amount,
		e.SplitType,
		e.TemplateID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}

	if err := insertChildren(ctx, tx, created.ID, payments, shares); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit expense: %w", err)
	}

	return created, nil
}

// ReplaceExpense updates the expense row and replaces its payments and shares in one transaction
func (r *Repository) ReplaceExpense(ctx context.Context, e *Expense, payments []Payment, shares []split.Share) (*Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE expenses
		SET description = $2, amount = $3, split_type = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + expenseColumns

	updated, err := scanExpense(tx.QueryRowContext(ctx, query, e.ID, e.Description, e.Amount, e.SplitType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExpenseNotFound
		}
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_payments WHERE expense_id = $1`, e.ID); err != nil {
		return nil, fmt.Errorf("failed to clear payments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_shares WHERE expense_id = $1`, e.ID); err != nil {
		return nil, fmt.Errorf("failed to clear shares: %w", err)
	}

	if err := insertChildren(ctx, tx, e.ID, payments, shares); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit expense: %w", err)
	}

	return updated, nil
}

func insertChildren(ctx context.Context, tx *sql.Tx, expenseID int64, payments []Payment, shares []split.Share) error {
	for _, p := range payments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expense_payments (expense_id, user_id, amount) VALUES ($1, $2, $3)`,
			expenseID, p.UserID, p.Amount,
		)
		if err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
	}

	for i, s := range shares {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expense_shares (expense_id, user_id, amount, percentage, position) VALUES ($1, $2, $3, $4, $5)`,
			expenseID, s.UserID, s.Amount, s.Percent, i,
		)
		if err != nil {
			return fmt.Errorf("failed to create share: %w", err)
		}
	}

	return nil
}

// GetExpenseByID retrieves an expense by its ID
func (r *Repository) GetExpenseByID(ctx context.Context, id int64) (*Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`

	expense, err := scanExpense(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	return expense, nil
}

// GetPayments retrieves the payments recorded for an expense
func (r *Repository) GetPayments(ctx context.Context, expenseID int64) ([]Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, amount FROM expense_payments WHERE expense_id = $1 ORDER BY id`,
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.UserID, &p.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

// GetShares retrieves an expense's shares in participant order
func (r *Repository) GetShares(ctx context.Context, expenseID int64) ([]split.Share, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, amount, percentage FROM expense_shares WHERE expense_id = $1 ORDER BY position`,
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get shares: %w", err)
	}
	defer rows.Close()

	var shares []split.Share
	for rows.Next() {
		var s split.Share
		if err := rows.Scan(&s.UserID, &s.Amount, &s.Percent); err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		shares = append(shares, s)
	}

	return shares, rows.Err()
}

// ListExpensesByGroupID retrieves expenses for a group with pagination
func (r *Repository) ListExpensesByGroupID(ctx context.Context, groupID int64, limit, offset int) ([]*Expense, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses WHERE group_id = $1`, groupID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	query := `
		SELECT ` + expenseColumns + `
		FROM expenses
		WHERE group_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, groupID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}

	return expenses, total, rows.Err()
}

// DeleteExpense deletes an expense; payments and shares cascade
func (r *Repository) DeleteExpense(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrExpenseNotFound
	}

	return nil
}

package recurring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fkhayef/splitledger/internal/events"
	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/metrics"
)

// ExpenseCreator stores a new expense with its payments and shares atomically
type ExpenseCreator interface {
	CreateExpense(ctx context.Context, actorID int64, req *expense.CreateExpenseRequest) (*expense.ExpenseWithShares, error)
}

// Processor creates expenses from templates that are due
type Processor struct {
	store     Store
	expenses  ExpenseCreator
	publisher events.Publisher
}

// NewProcessor creates a new recurring expense processor
func NewProcessor(store Store, expenses ExpenseCreator, publisher events.Publisher) *Processor {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Processor{store: store, expenses: expenses, publisher: publisher}
}

// ProcessDue materializes one occurrence of every template due on or before today and
// returns how many expenses were created. A template that fails is logged and skipped.
func (p *Processor) ProcessDue(ctx context.Context, today time.Time) (int, error) {
	return p.process(ctx, today, 0)
}

// ProcessDueForGroup is ProcessDue restricted to one group's templates
func (p *Processor) ProcessDueForGroup(ctx context.Context, today time.Time, groupID int64) (int, error) {
	return p.process(ctx, today, groupID)
}

// process runs every due template, or only groupID's when it is not zero
func (p *Processor) process(ctx context.Context, today time.Time, groupID int64) (int, error) {
	today = day(today)

	due, err := p.store.ListDue(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("failed to list due templates: %w", err)
	}

	templates := due
	if groupID != 0 {
		templates = make([]*Template, 0, len(due))
		for _, t := range due {
			if t.GroupID == groupID {
				templates = append(templates, t)
			}
		}
	}

	slog.InfoContext(ctx, "Processing recurring expenses",
		"due", len(templates),
		"group_id", groupID,
		"processing_date", today.Format(dateLayout))

	processed := 0
	for _, t := range templates {
		if t.expired(today) {
			if _, err := p.store.AdvanceSchedule(ctx, t.ID, t.NextExecutionDate, t.NextExecutionDate, false); err != nil {
				slog.ErrorContext(ctx, "Failed to deactivate expired template", "template_id", t.ID, "error", err)
			}
			continue
		}

		created, err := p.materialize(ctx, t)
		if err != nil {
			metrics.RecurringFailures.Inc()
			slog.ErrorContext(ctx, "Failed to create expense from recurring template",
				"template_id", t.ID,
				"description", t.Description,
				"error", err)
			continue
		}
		if created {
			processed++
		}
	}

	slog.InfoContext(ctx, "Recurring expense processing complete",
		"processed", processed,
		"total_checked", len(templates))

	return processed, nil
}

// materialize claims t's current occurrence by advancing its schedule, then creates
// the expense. It reports false when another run claimed the occurrence first. If the
// expense cannot be created the claim is handed back so the occurrence stays due.
func (p *Processor) materialize(ctx context.Context, t *Template) (bool, error) {
	due := t.NextExecutionDate
	next := t.next()
	active := !t.expired(next)

	claimed, err := p.store.AdvanceSchedule(ctx, t.ID, due, next, active)
	if err != nil {
		return false, fmt.Errorf("failed to claim occurrence: %w", err)
	}
	if !claimed {
		slog.DebugContext(ctx, "Recurring occurrence already claimed",
			"template_id", t.ID,
			"due", due.Format(dateLayout))
		return false, nil
	}

	templateID := t.ID
	created, err := p.expenses.CreateExpense(ctx, t.PayerID, &expense.CreateExpenseRequest{
		GroupID:      t.GroupID,
		Description:  t.Description,
		Amount:       t.Amount.Decimal(),
		SplitType:    string(t.SplitType),
		Participants: t.Participants,
		Payments:     []*expense.PaymentInput{{UserID: t.PayerID, Amount: t.Amount.Decimal()}},
		TemplateID:   &templateID,
	})
	if err != nil {
		if _, releaseErr := p.store.AdvanceSchedule(ctx, t.ID, next, due, t.Active); releaseErr != nil {
			// the occurrence is skipped rather than charged twice
			slog.ErrorContext(ctx, "Failed to release recurring occurrence",
				"template_id", t.ID,
				"due", due.Format(dateLayout),
				"error", releaseErr)
		}
		return false, err
	}

	metrics.RecurringMaterialized.Inc()
	slog.InfoContext(ctx, "Created expense from recurring template",
		"template_id", t.ID,
		"expense_id", created.Expense.ID,
		"amount", t.Amount,
		"frequency", t.Frequency,
		"next_execution_date", next.Format(dateLayout),
		"active", active)

	events.PublishAfterCommit(ctx, p.publisher, events.New(events.RecurringMaterialized, events.MaterializedPayload{
		TemplateID:        t.ID,
		ExpenseID:         created.Expense.ID,
		GroupID:           t.GroupID,
		Amount:            t.Amount,
		NextExecutionDate: next.Format(dateLayout),
	}))

	return true, nil
}

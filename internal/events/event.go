// Package events publishes ledger domain events to the configured broker.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/splitledger/internal/metrics"
	"github.com/fkhayef/splitledger/internal/money"
)

// Event types
const (
	ExpenseCreated        = "expense.created"
	ExpenseUpdated        = "expense.updated"
	ExpenseRedistributed  = "expense.redistributed"
	ExpenseDeleted        = "expense.deleted"
	RecurringMaterialized = "recurring.materialized"
)

// Event is the envelope written to the broker
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// ExpensePayload describes an expense change
type ExpensePayload struct {
	ExpenseID    int64        `json:"expense_id"`
	GroupID      int64        `json:"group_id"`
	ActorID      int64        `json:"actor_id"`
	Description  string       `json:"description"`
	Amount       money.Amount `json:"amount"`
	SplitType    string       `json:"split_type"`
	Participants []int64      `json:"participants"`
	TemplateID   *int64       `json:"template_id,omitempty"`
}

// MaterializedPayload describes an expense created from a recurring template
type MaterializedPayload struct {
	TemplateID        int64        `json:"template_id"`
	ExpenseID         int64        `json:"expense_id"`
	GroupID           int64        `json:"group_id"`
	Amount            money.Amount `json:"amount"`
	NextExecutionDate string       `json:"next_execution_date"`
}

// New wraps payload in an Event with a fresh id.
func New(eventType string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

func (e Event) marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to a broker or an in-process consumer.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishAfterCommit publishes event and logs instead of failing: the ledger change it
// describes is already durable.
func PublishAfterCommit(ctx context.Context, p Publisher, event Event) {
	if p == nil {
		return
	}
	err := p.Publish(ctx, event)
	metrics.EventsPublished.WithLabelValues(event.Type, metrics.Result(err)).Inc()
	if err != nil {
		slog.WarnContext(ctx, "Failed to publish event",
			"event_id", event.ID,
			"type", event.Type,
			"error", err)
	}
}

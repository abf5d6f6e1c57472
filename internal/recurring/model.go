// Package recurring materializes expenses from templates on a schedule.
package recurring

import (
	"time"

	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/money"
)

// Frequency is how often a template produces an expense
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

// Template describes an expense that repeats
type Template struct {
	ID                int64                       `json:"id"`
	GroupID           int64                       `json:"group_id"`
	CreatedBy         int64                       `json:"created_by"`
	PayerID           int64                       `json:"payer_id"`
	Description       string                      `json:"description"`
	Amount            money.Amount                `json:"amount"`
	SplitType         split.SplitType             `json:"split_type"`
	Participants      []*expense.ParticipantInput `json:"participants"`
	Frequency         Frequency                   `json:"frequency"`
	StartDate         time.Time                   `json:"start_date"`
	EndDate           *time.Time                  `json:"end_date,omitempty"`
	NextExecutionDate time.Time                   `json:"next_execution_date"`
	Active            bool                        `json:"active"`
	CreatedAt         time.Time                   `json:"created_at"`
}

// expired reports whether day is past the template's end date
func (t *Template) expired(day time.Time) bool {
	return t.EndDate != nil && day.After(*t.EndDate)
}

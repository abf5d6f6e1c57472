package expense

import (
	"time"

	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/money"
)

// Expense represents an expense in the system
type Expense struct {
	ID          int64           `json:"id"`
	GroupID     int64           `json:"group_id"`
	CreatedBy   int64           `json:"created_by"`
	Description string          `json:"description"`
	Amount      money.Amount    `json:"amount"`
	SplitType   split.SplitType `json:"split_type"`
	TemplateID  *int64          `json:"template_id,omitempty"` // set when materialized from a recurring template
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Payment records money actually paid toward an expense
type Payment struct {
	UserID int64        `json:"user_id"`
	Amount money.Amount `json:"amount" swaggertype:"number"`
}

// ExpenseWithShares combines an expense with its payments and allocated shares
type ExpenseWithShares struct {
	Expense  *Expense
	Payments []Payment
	Shares   []split.Share
}

// Participants returns the share holders in stored order
func (e *ExpenseWithShares) Participants() []int64 {
	ids := make([]int64, len(e.Shares))
	for i, s := range e.Shares {
		ids[i] = s.UserID
	}
	return ids
}

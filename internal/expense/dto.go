package expense

import (
	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/money"
)

// ParticipantInput names a participant and, for CUSTOM or PERCENTAGE splits, their raw input
type ParticipantInput struct {
	UserID     int64            `json:"user_id"`
	Percentage *decimal.Decimal `json:"percentage,omitempty" swaggertype:"string" example:"25"` // For PERCENTAGE split
	Amount     *decimal.Decimal `json:"amount,omitempty" swaggertype:"string" example:"10.00"`  // For CUSTOM split
}

// PaymentInput is money paid by one member
type PaymentInput struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"10.00"`
}

// CreateExpenseRequest represents the request to create an expense
type CreateExpenseRequest struct {
	GroupID      int64               `json:"group_id" validate:"required"`
	Description  string              `json:"description" validate:"required,min=1,max=255"`
	Amount       decimal.Decimal     `json:"amount" validate:"required,gt=0" swaggertype:"string" example:"10.00"`
	SplitType    string              `json:"split_type" validate:"required,oneof=EQUAL CUSTOM PERCENTAGE"`
	Participants []*ParticipantInput `json:"participants" validate:"required,min=1"`
	// Payments default to the full amount paid by the caller.
	Payments []*PaymentInput `json:"payments,omitempty"`

	TemplateID *int64 `json:"-"`
}

// UpdateExpenseRequest represents the request to update an expense. Omitted fields keep
// their stored values; shares are always recomputed.
type UpdateExpenseRequest struct {
	Description  *string             `json:"description,omitempty" validate:"omitempty,min=1,max=255"`
	Amount       *decimal.Decimal    `json:"amount,omitempty" swaggertype:"string" example:"10.00"`
	SplitType    *string             `json:"split_type,omitempty"`
	Participants []*ParticipantInput `json:"participants,omitempty"`
	Payments     []*PaymentInput     `json:"payments,omitempty"`
}

// RedistributeRequest recomputes shares while keeping the amount and payments
type RedistributeRequest struct {
	SplitType    string              `json:"split_type"`
	Participants []*ParticipantInput `json:"participants"`
}

// PreviewRequest allocates without persisting anything
type PreviewRequest struct {
	Amount       decimal.Decimal     `json:"amount" swaggertype:"string" example:"10.00"`
	SplitType    string              `json:"split_type"`
	Participants []*ParticipantInput `json:"participants"`
}

// PreviewResponse is the would-be allocation
type PreviewResponse struct {
	Amount    money.Amount    `json:"amount" swaggertype:"number"`
	SplitType split.SplitType `json:"split_type"`
	Shares    []split.Share   `json:"shares"`
}

// ExpenseResponse represents the response for an expense
type ExpenseResponse struct {
	ID          int64           `json:"id"`
	GroupID     int64           `json:"group_id"`
	CreatedBy   int64           `json:"created_by"`
	Description string          `json:"description"`
	Amount      money.Amount    `json:"amount" swaggertype:"number"`
	SplitType   split.SplitType `json:"split_type"`
	TemplateID  *int64          `json:"template_id,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	Payments    []Payment       `json:"payments,omitempty"`
	Shares      []split.Share   `json:"shares,omitempty"`
}

// ToResponse converts an Expense model to an ExpenseResponse DTO
func (e *Expense) ToResponse() *ExpenseResponse {
	return &ExpenseResponse{
		ID:          e.ID,
		GroupID:     e.GroupID,
		CreatedBy:   e.CreatedBy,
		Description: e.Description,
		Amount:      e.Amount,
		SplitType:   e.SplitType,
		TemplateID:  e.TemplateID,
		CreatedAt:   e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   e.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ToResponse includes payments and shares
func (e *ExpenseWithShares) ToResponse() *ExpenseResponse {
	resp := e.Expense.ToResponse()
	resp.Payments = e.Payments
	resp.Shares = e.Shares
	return resp
}

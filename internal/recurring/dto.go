package recurring

import (
	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/money"
)

// CreateTemplateRequest represents the request to create a recurring template
type CreateTemplateRequest struct {
	GroupID      int64                       `json:"group_id"`
	PayerID      int64                       `json:"payer_id,omitempty"` // defaults to the caller
	Description  string                      `json:"description"`
	Amount       decimal.Decimal             `json:"amount" swaggertype:"string" example:"10.00"`
	SplitType    string                      `json:"split_type"`
	Participants []*expense.ParticipantInput `json:"participants"`
	Frequency    string                      `json:"frequency"`
	StartDate    string                      `json:"start_date,omitempty"` // YYYY-MM-DD, defaults to today
	EndDate      string                      `json:"end_date,omitempty"`
}

// TemplateResponse represents a recurring template in API responses
type TemplateResponse struct {
	ID                int64                       `json:"id"`
	GroupID           int64                       `json:"group_id"`
	CreatedBy         int64                       `json:"created_by"`
	PayerID           int64                       `json:"payer_id"`
	Description       string                      `json:"description"`
	Amount            money.Amount                `json:"amount" swaggertype:"number"`
	SplitType         string                      `json:"split_type"`
	Participants      []*expense.ParticipantInput `json:"participants"`
	Frequency         Frequency                   `json:"frequency"`
	StartDate         string                      `json:"start_date"`
	EndDate           *string                     `json:"end_date,omitempty"`
	NextExecutionDate string                      `json:"next_execution_date"`
	Active            bool                        `json:"active"`
}

// RunResponse reports a manual processing run
type RunResponse struct {
	Processed int `json:"processed"`
}

// ToResponse converts a Template to a TemplateResponse DTO
func (t *Template) ToResponse() *TemplateResponse {
	resp := &TemplateResponse{
		ID:                t.ID,
		GroupID:           t.GroupID,
		CreatedBy:         t.CreatedBy,
		PayerID:           t.PayerID,
		Description:       t.Description,
		Amount:            t.Amount,
		SplitType:         string(t.SplitType),
		Participants:      t.Participants,
		Frequency:         t.Frequency,
		StartDate:         t.StartDate.Format(dateLayout),
		NextExecutionDate: t.NextExecutionDate.Format(dateLayout),
		Active:            t.Active,
	}
	if t.EndDate != nil {
		end := t.EndDate.Format(dateLayout)
		resp.EndDate = &end
	}
	return resp
}

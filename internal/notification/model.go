package notification

import "time"

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationTypeExpenseAdded         NotificationType = "EXPENSE_ADDED"
	NotificationTypeExpenseUpdated       NotificationType = "EXPENSE_UPDATED"
	NotificationTypeExpenseRedistributed NotificationType = "EXPENSE_REDISTRIBUTED"
	NotificationTypeExpenseDeleted       NotificationType = "EXPENSE_DELETED"
	NotificationTypeRecurringAdded       NotificationType = "RECURRING_ADDED"
)

// Notification represents a notification in the system
type Notification struct {
	ID          int64            `json:"id"`
	RecipientID int64            `json:"recipient_id"`
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	IsRead      bool             `json:"is_read"`
	GroupID     *int64           `json:"group_id,omitempty"`
	ExpenseID   *int64           `json:"expense_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

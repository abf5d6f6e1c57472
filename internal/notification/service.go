package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fkhayef/splitledger/internal/events"
)

// Common errors
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotRecipient         = errors.New("not the recipient of this notification")
)

// Store is the persistence contract for notifications
type Store interface {
	Create(ctx context.Context, n *Notification) (*Notification, error)
	GetByID(ctx context.Context, id int64) (*Notification, error)
	ListByRecipientID(ctx context.Context, recipientID int64, limit, offset int, unreadOnly bool) ([]*Notification, int, error)
	MarkAsRead(ctx context.Context, id int64) error
	MarkAllAsRead(ctx context.Context, recipientID int64) error
	GetUnreadCount(ctx context.Context, recipientID int64) (int, error)
}

// Service handles notification business logic. It also consumes expense events so
// participants hear about changes to expenses they share in.
type Service struct {
	repo Store
}

// NewService creates a new notification service
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Publish turns an expense event into one notification per affected participant. The
// actor is never notified of their own change.
func (s *Service) Publish(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ExpensePayload)
	if !ok {
		return nil
	}

	kind, verb := classify(event.Type, payload)
	if kind == "" {
		return nil
	}

	message := fmt.Sprintf("%q (%s) was %s", payload.Description, payload.Amount, verb)
	groupID, expenseID := payload.GroupID, payload.ExpenseID

	var errs []error
	for _, recipient := range payload.Participants {
		if recipient == payload.ActorID {
			continue
		}
		_, err := s.repo.Create(ctx, &Notification{
			RecipientID: recipient,
			Type:        kind,
			Message:     message,
			GroupID:     &groupID,
			ExpenseID:   &expenseID,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to notify participants of %s: %w", event.Type, err)
	}

	slog.DebugContext(ctx, "Participants notified", "event_id", event.ID, "type", kind)
	return nil
}

func classify(eventType string, payload events.ExpensePayload) (NotificationType, string) {
	switch eventType {
	case events.ExpenseCreated:
		if payload.TemplateID != nil {
			return NotificationTypeRecurringAdded, "added from a recurring expense"
		}
		return NotificationTypeExpenseAdded, "added"
	case events.ExpenseUpdated:
		return NotificationTypeExpenseUpdated, "updated"
	case events.ExpenseRedistributed:
		return NotificationTypeExpenseRedistributed, "split differently"
	case events.ExpenseDeleted:
		return NotificationTypeExpenseDeleted, "deleted"
	}
	return "", ""
}

// GetByID retrieves a notification by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Notification, error) {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if notification == nil {
		return nil, ErrNotificationNotFound
	}
	return notification, nil
}

// ListByRecipientID retrieves all notifications for a user
func (s *Service) ListByRecipientID(ctx context.Context, recipientID int64, page, perPage int, unreadOnly bool) ([]*Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByRecipientID(ctx, recipientID, perPage, offset, unreadOnly)
}

// MarkAsRead marks a notification as read
func (s *Service) MarkAsRead(ctx context.Context, id, userID int64) error {
	notification, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if notification.RecipientID != userID {
		return ErrNotRecipient
	}

	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks all notifications as read for a user
func (s *Service) MarkAllAsRead(ctx context.Context, userID int64) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// GetUnreadCount returns the count of unread notifications
func (s *Service) GetUnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/fkhayef/splitledger/internal/notification"
)

// Notifications implements notification.Store
type Notifications struct{ s *State }

func (v *Notifications) Create(_ context.Context, n *notification.Notification) (*notification.Notification, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	created := *n
	created.ID = v.s.id()
	created.IsRead = false
	created.CreatedAt = v.s.now()
	v.s.notifications[created.ID] = &created

	out := created
	return &out, nil
}

func (v *Notifications) GetByID(_ context.Context, id int64) (*notification.Notification, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	n, ok := v.s.notifications[id]
	if !ok {
		return nil, nil
	}
	out := *n
	return &out, nil
}

func (v *Notifications) ListByRecipientID(_ context.Context, recipientID int64, limit, offset int, unreadOnly bool) ([]*notification.Notification, int, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var all []*notification.Notification
	for _, n := range v.s.notifications {
		if n.RecipientID == recipientID && (!unreadOnly || !n.IsRead) {
			all = append(all, n)
		}
	}
	slices.SortFunc(all, func(a, b *notification.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	var out []*notification.Notification
	for _, n := range page(all, limit, offset) {
		copied := *n
		out = append(out, &copied)
	}
	return out, len(all), nil
}

func (v *Notifications) MarkAsRead(_ context.Context, id int64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if n, ok := v.s.notifications[id]; ok {
		n.IsRead = true
	}
	return nil
}

func (v *Notifications) MarkAllAsRead(_ context.Context, recipientID int64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	for _, n := range v.s.notifications {
		if n.RecipientID == recipientID {
			n.IsRead = true
		}
	}
	return nil
}

func (v *Notifications) GetUnreadCount(_ context.Context, recipientID int64) (int, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	count := 0
	for _, n := range v.s.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

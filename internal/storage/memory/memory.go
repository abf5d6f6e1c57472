// Package memory keeps the whole ledger in process. It backs DATA_BACKEND=memory
// and the service test suites, and mirrors the Postgres repositories: missing rows
// come back as nil with no error, deletes cascade.
package memory

import (
	"sync"
	"time"

	"github.com/fkhayef/splitledger/internal/balance"
	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/internal/notification"
	"github.com/fkhayef/splitledger/internal/recurring"
	"github.com/fkhayef/splitledger/internal/user"
)

var (
	_ user.Store         = (*Users)(nil)
	_ group.Store        = (*Groups)(nil)
	_ expense.Store      = (*Expenses)(nil)
	_ balance.Store      = (*Balances)(nil)
	_ recurring.Store    = (*Recurring)(nil)
	_ notification.Store = (*Notifications)(nil)
)

// State holds every table behind one lock.
type State struct {
	mu     sync.RWMutex
	nextID int64
	now    func() time.Time

	users         map[int64]*user.User
	groups        map[int64]*group.Group
	members       []*group.GroupMember
	expenses      map[int64]*expense.Expense
	payments      map[int64][]expense.Payment
	shares        map[int64][]split.Share
	templates     map[int64]*recurring.Template
	notifications map[int64]*notification.Notification
}

// New returns an empty store.
func New() *State {
	return &State{
		now:           func() time.Time { return time.Now().UTC() },
		users:         make(map[int64]*user.User),
		groups:        make(map[int64]*group.Group),
		expenses:      make(map[int64]*expense.Expense),
		payments:      make(map[int64][]expense.Payment),
		shares:        make(map[int64][]split.Share),
		templates:     make(map[int64]*recurring.Template),
		notifications: make(map[int64]*notification.Notification),
	}
}

// id hands out a store-wide sequence. Callers hold the write lock.
func (s *State) id() int64 {
	s.nextID++
	return s.nextID
}

// page slices items the way LIMIT/OFFSET would.
func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

// Users returns the user.Store view.
func (s *State) Users() *Users { return &Users{s} }

// Groups returns the group.Store view.
func (s *State) Groups() *Groups { return &Groups{s} }

// Expenses returns the expense.Store view.
func (s *State) Expenses() *Expenses { return &Expenses{s} }

// Balances returns the balance.Store view.
func (s *State) Balances() *Balances { return &Balances{s} }

// Recurring returns the recurring.Store view.
func (s *State) Recurring() *Recurring { return &Recurring{s} }

// Notifications returns the notification.Store view.
func (s *State) Notifications() *Notifications { return &Notifications{s} }

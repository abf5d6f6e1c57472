package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/fkhayef/splitledger/internal/balance"
	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/expense/split"
)

// Expenses implements expense.Store
type Expenses struct{ s *State }

func (v *Expenses) CreateExpense(_ context.Context, e *expense.Expense, payments []expense.Payment, shares []split.Share) (*expense.Expense, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, ok := v.s.groups[e.GroupID]; !ok {
		return nil, fmt.Errorf("failed to create expense: group %d does not exist", e.GroupID)
	}

	created := *e
	created.ID = v.s.id()
	created.CreatedAt = v.s.now()
	created.UpdatedAt = created.CreatedAt
	v.s.expenses[created.ID] = &created
	v.s.payments[created.ID] = slices.Clone(payments)
	v.s.shares[created.ID] = slices.Clone(shares)

	out := created
	return &out, nil
}

func (v *Expenses) ReplaceExpense(_ context.Context, e *expense.Expense, payments []expense.Payment, shares []split.Share) (*expense.Expense, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	stored, ok := v.s.expenses[e.ID]
	if !ok {
		return nil, expense.ErrExpenseNotFound
	}
	stored.Description = e.Description
	stored.Amount = e.Amount
	stored.SplitType = e.SplitType
	stored.UpdatedAt = v.s.now()
	v.s.payments[e.ID] = slices.Clone(payments)
	v.s.shares[e.ID] = slices.Clone(shares)

	out := *stored
	return &out, nil
}

func (v *Expenses) GetExpenseByID(_ context.Context, id int64) (*expense.Expense, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	e, ok := v.s.expenses[id]
	if !ok {
		return nil, nil
	}
	out := *e
	return &out, nil
}

func (v *Expenses) GetPayments(_ context.Context, expenseID int64) ([]expense.Payment, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return slices.Clone(v.s.payments[expenseID]), nil
}

func (v *Expenses) GetShares(_ context.Context, expenseID int64) ([]split.Share, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return slices.Clone(v.s.shares[expenseID]), nil
}

// ListExpensesByGroupID returns newest first
func (v *Expenses) ListExpensesByGroupID(_ context.Context, groupID int64, limit, offset int) ([]*expense.Expense, int, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var all []*expense.Expense
	for _, e := range v.s.expenses {
		if e.GroupID == groupID {
			all = append(all, e)
		}
	}
	slices.SortFunc(all, func(a, b *expense.Expense) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	var out []*expense.Expense
	for _, e := range page(all, limit, offset) {
		copied := *e
		out = append(out, &copied)
	}
	return out, len(all), nil
}

func (v *Expenses) DeleteExpense(_ context.Context, id int64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, ok := v.s.expenses[id]; !ok {
		return expense.ErrExpenseNotFound
	}
	v.s.deleteExpense(id)
	return nil
}

func (s *State) deleteExpense(id int64) {
	delete(s.expenses, id)
	delete(s.payments, id)
	delete(s.shares, id)
}

// Balances implements balance.Store over the stored payments and shares
type Balances struct{ s *State }

func (v *Balances) ListPaymentRows(_ context.Context, groupID int64) ([]balance.Row, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var rows []balance.Row
	for _, id := range v.s.groupExpenseIDs(groupID) {
		for _, p := range v.s.payments[id] {
			rows = append(rows, balance.Row{UserID: p.UserID, Amount: p.Amount.String()})
		}
	}
	return rows, nil
}

func (v *Balances) ListShareRows(_ context.Context, groupID int64) ([]balance.Row, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var rows []balance.Row
	for _, id := range v.s.groupExpenseIDs(groupID) {
		for _, sh := range v.s.shares[id] {
			rows = append(rows, balance.Row{UserID: sh.UserID, Amount: sh.Amount.String()})
		}
	}
	return rows, nil
}

func (s *State) groupExpenseIDs(groupID int64) []int64 {
	var ids []int64
	for id, e := range s.expenses {
		if e.GroupID == groupID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

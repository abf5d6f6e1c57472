// Package balance derives per-member net positions from a group's payments and shares.
package balance

import (
	"log/slog"
	"slices"

	"github.com/fkhayef/splitledger/internal/money"
)

// Entry is one payment or share attributed to a user
type Entry struct {
	UserID int64
	Amount money.Amount
}

// Balance is a member's position across every expense in a group. A positive Balance
// means others owe the member.
type Balance struct {
	UserID    int64        `json:"user_id"`
	TotalPaid money.Amount `json:"total_paid"`
	TotalOwed money.Amount `json:"total_owed"`
	Balance   money.Amount `json:"balance"`
}

// Message renders the balance for display
func (b *Balance) Message() string {
	switch {
	case b.Balance > 0:
		return "is owed " + b.Balance.String()
	case b.Balance < 0:
		return "owes " + (-b.Balance).String()
	default:
		return "settled up"
	}
}

// Aggregate sums payments into TotalPaid and shares into TotalOwed for every member.
// Entries for users outside members are skipped.
func Aggregate(members []int64, payments, shares []Entry) map[int64]*Balance {
	balances := make(map[int64]*Balance, len(members))
	for _, id := range members {
		balances[id] = &Balance{UserID: id}
	}

	for _, p := range payments {
		b, ok := balances[p.UserID]
		if !ok {
			slog.Debug("Skipping payment from non-member", "user_id", p.UserID, "amount", p.Amount)
			continue
		}
		b.TotalPaid += p.Amount
	}

	for _, s := range shares {
		b, ok := balances[s.UserID]
		if !ok {
			slog.Debug("Skipping share of non-member", "user_id", s.UserID, "amount", s.Amount)
			continue
		}
		b.TotalOwed += s.Amount
	}

	for _, b := range balances {
		b.Balance = b.TotalPaid - b.TotalOwed
	}

	return balances
}

// Sorted returns the balances ordered by user id
func Sorted(balances map[int64]*Balance) []*Balance {
	out := make([]*Balance, 0, len(balances))
	for _, b := range balances {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b *Balance) int {
		switch {
		case a.UserID < b.UserID:
			return -1
		case a.UserID > b.UserID:
			return 1
		}
		return 0
	})
	return out
}

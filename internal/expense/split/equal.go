package split

import (
	"cmp"
	"slices"

	"github.com/fkhayef/splitledger/internal/money"
)

// =============================================================================
// EQUAL SPLIT
// Divides the expense equally among all participants. Leftover cents go to the
// first participants in input order; leftover hundredths of a percent follow the
// amounts so a smaller share never shows a larger percentage.
// =============================================================================

// Equal implements the Policy interface for equal splits
type Equal struct{}

func (Equal) sealed() {}

// Type returns the split type identifier
func (Equal) Type() SplitType {
	return SplitTypeEqual
}

// Validate checks if the inputs are valid for an equal split
func (Equal) Validate(total money.Amount, participants []int64) error {
	if total < 0 {
		return ErrInvalidAmount
	}
	return checkDistinct(participants)
}

// Calculate gives every participant round(total/n) and then walks the remainder plan,
// so the amounts add up to total and the percentages to 100.00 exactly.
func (e Equal) Calculate(total money.Amount, participants []int64) ([]Share, error) {
	if err := e.Validate(total, participants); err != nil {
		return nil, err
	}
	n := len(participants)
	if n == 0 {
		return []Share{}, nil
	}

	amounts := distribute(int64(total), n)

	// A zero expense carries no weight, so nobody holds a percentage of it.
	percents := make([]int64, n)
	if total != 0 {
		percents = percentages(amounts)
	}

	shares := make([]Share, n)
	for i, id := range participants {
		shares[i] = Share{
			UserID:  id,
			Amount:  money.Amount(amounts[i]),
			Percent: money.Percent(percents[i]),
		}
	}
	return shares, nil
}

// step moves one unit (a cent or a hundredth of a percent) onto a participant.
type step struct {
	index int
	delta int64
}

// remainderPlan lists the adjustments that make n copies of base add up to total.
// base is round(total/n), so fewer than n steps are ever needed.
func remainderPlan(total, base int64, n int) []step {
	diff := total - base*int64(n)
	if diff == 0 {
		return nil
	}
	delta := int64(1)
	if diff < 0 {
		delta = -1
		diff = -diff
	}
	plan := make([]step, diff)
	for i := range plan {
		plan[i] = step{index: i, delta: delta}
	}
	return plan
}

func distribute(total int64, n int) []int64 {
	base := money.RoundDiv(total, int64(n))
	out := make([]int64, n)
	for i := range out {
		out[i] = base
	}
	for _, s := range remainderPlan(total, base, n) {
		out[s.index] += s.delta
	}
	return out
}

// percentages splits 100.00 evenly and walks the hundredths remainder along the
// amounts: extra hundredths go to the largest amounts first and missing ones come
// off the smallest, input order breaking ties.
func percentages(amounts []int64) []int64 {
	n := len(amounts)
	hundred := int64(money.Hundred)
	base := money.RoundDiv(hundred, int64(n))
	out := make([]int64, n)
	for i := range out {
		out[i] = base
	}

	plan := remainderPlan(hundred, base, n)
	if len(plan) == 0 {
		return out
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	up := plan[0].delta > 0
	slices.SortStableFunc(order, func(a, b int) int {
		if up {
			return cmp.Compare(amounts[b], amounts[a])
		}
		return cmp.Compare(amounts[a], amounts[b])
	})

	for _, s := range plan {
		out[order[s.index]] += s.delta
	}
	return out
}

package split

import (
	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/money"
)

// =============================================================================
// CUSTOM SPLIT
// Each participant owes a specific amount; the amounts must add up to the total
// =============================================================================

// Custom implements the Policy interface for exact amount splits. Participants
// missing from Amounts owe nothing.
type Custom struct {
	Amounts map[int64]decimal.Decimal
}

func (Custom) sealed() {}

// Type returns the split type identifier
func (Custom) Type() SplitType {
	return SplitTypeCustom
}

// Validate checks the raw amounts, before rounding, against the total
func (c Custom) Validate(total money.Amount, participants []int64) error {
	if total < 0 {
		return ErrInvalidAmount
	}
	if err := checkDistinct(participants); err != nil {
		return err
	}

	sum := decimal.Zero
	for _, id := range participants {
		raw := rawFor(c.Amounts, id)
		if raw.IsNegative() {
			return ErrInvalidAmount
		}
		sum = sum.Add(raw)
	}

	return CheckSum(ErrShareMismatch, "custom amounts", total.Decimal(), sum)
}

// Calculate returns the specified amounts rounded to cents. Rounding drift within the
// tolerance is not redistributed.
func (c Custom) Calculate(total money.Amount, participants []int64) ([]Share, error) {
	if err := c.Validate(total, participants); err != nil {
		return nil, err
	}

	shares := make([]Share, len(participants))
	for i, id := range participants {
		amount := money.FromDecimal(rawFor(c.Amounts, id))
		shares[i] = Share{
			UserID:  id,
			Amount:  amount,
			Percent: money.PercentOf(amount, total),
		}
	}
	return shares, nil
}

package split

import (
	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/money"
)

// =============================================================================
// PERCENTAGE SPLIT
// Divides the expense based on specified percentages for each participant
// =============================================================================

// Percentage implements the Policy interface for percentage-based splits.
// Participants missing from Percents hold 0%.
type Percentage struct {
	Percents map[int64]decimal.Decimal
}

func (Percentage) sealed() {}

// Type returns the split type identifier
func (Percentage) Type() SplitType {
	return SplitTypePercentage
}

// Validate checks that the raw percentages add up to 100
func (p Percentage) Validate(total money.Amount, participants []int64) error {
	if total < 0 {
		return ErrInvalidAmount
	}
	if err := checkDistinct(participants); err != nil {
		return err
	}

	sum := decimal.Zero
	for _, id := range participants {
		raw := rawFor(p.Percents, id)
		if raw.IsNegative() {
			return ErrInvalidAmount
		}
		sum = sum.Add(raw)
	}

	return CheckSum(ErrShareMismatch, "percentages", money.Hundred.Decimal(), sum)
}

// Calculate derives each amount from the rounded percentage. Rounding drift within the
// tolerance is not redistributed.
func (p Percentage) Calculate(total money.Amount, participants []int64) ([]Share, error) {
	if err := p.Validate(total, participants); err != nil {
		return nil, err
	}

	shares := make([]Share, len(participants))
	for i, id := range participants {
		percent := money.PercentFromDecimal(rawFor(p.Percents, id))
		shares[i] = Share{
			UserID:  id,
			Amount:  money.Portion(total, percent),
			Percent: percent,
		}
	}
	return shares, nil
}

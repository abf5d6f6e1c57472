// Package money holds the fixed-point types used for every monetary value in the ledger.
//
// Amounts are integer cents and percentages are integer hundredths of a percent, so all
// arithmetic inside the ledger is exact. Values cross the API and database boundary as
// decimals with two fractional digits, rounded half away from zero.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in cents.
type Amount int64

// Percent is a percentage in hundredths of a percent (10000 == 100.00%).
type Percent int64

// Hundred is 100.00%.
const Hundred Percent = 10000

var ErrInvalidAmount = errors.New("invalid amount")

// FromDecimal rounds d to cents, half away from zero.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount(d.Round(2).Shift(2).IntPart())
}

// FromCents builds an Amount from a cent count.
func FromCents(cents int64) Amount {
	return Amount(cents)
}

// ParseAmount parses a decimal string such as "12.5" or "-3.335".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d), nil
}

// ParseLenient parses s and reports whether it was a valid number. Unparseable input
// yields zero.
func ParseLenient(s string) (Amount, bool) {
	a, err := ParseAmount(s)
	if err != nil {
		return 0, false
	}
	return a, true
}

// Cents returns the raw cent count.
func (a Amount) Cents() int64 {
	return int64(a)
}

// Decimal returns the amount as a two-digit decimal.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number with exactly two fractional digits.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	*a = FromDecimal(d)
	return nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (a *Amount) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan amount: %w", err)
	}
	*a = FromDecimal(d)
	return nil
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Sum adds up amounts.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

// PercentFromDecimal rounds d (e.g. 33.335) to hundredths of a percent.
func PercentFromDecimal(d decimal.Decimal) Percent {
	return Percent(d.Round(2).Shift(2).IntPart())
}

// Decimal returns the percentage as a two-digit decimal (e.g. 33.34).
func (p Percent) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -2)
}

func (p Percent) String() string {
	return p.Decimal().StringFixed(2)
}

// MarshalJSON encodes the percentage as a JSON number with exactly two fractional digits.
func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Percent) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid percentage: %s", string(data))
	}
	*p = PercentFromDecimal(d)
	return nil
}

func (p *Percent) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan percent: %w", err)
	}
	*p = PercentFromDecimal(d)
	return nil
}

func (p Percent) Value() (driver.Value, error) {
	return p.String(), nil
}

// RoundDiv divides n by d (d > 0) rounding half away from zero.
func RoundDiv(n, d int64) int64 {
	q, r := n/d, n%d
	if r < 0 {
		r = -r
	}
	if 2*r >= d {
		if n < 0 {
			q--
		} else {
			q++
		}
	}
	return q
}

// PercentOf returns a as a share of total, e.g. 3.34 of 10.00 is 33.40%. A zero total
// yields zero.
func PercentOf(a, total Amount) Percent {
	if total == 0 {
		return 0
	}
	return Percent(RoundDiv(int64(a)*int64(Hundred), int64(total)))
}

// Portion returns p of total rounded to cents, e.g. 30.00% of 50.00 is 15.00.
func Portion(total Amount, p Percent) Amount {
	return Amount(RoundDiv(int64(total)*int64(p), int64(Hundred)))
}

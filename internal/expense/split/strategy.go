package split

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/money"
)

// SplitType identifies a split policy
type SplitType string

const (
	SplitTypeEqual      SplitType = "EQUAL"
	SplitTypeCustom     SplitType = "CUSTOM"
	SplitTypePercentage SplitType = "PERCENTAGE"
)

// Legacy names still accepted on input.
var aliases = map[string]SplitType{
	"EVEN":  SplitTypeEqual,
	"EXACT": SplitTypeCustom,
}

// Share is one participant's portion of an expense
type Share struct {
	UserID  int64         `json:"user_id"`
	Amount  money.Amount  `json:"amount" swaggertype:"number"`
	Percent money.Percent `json:"percentage" swaggertype:"number"`
}

// Policy is implemented by Equal, Custom and Percentage only.
type Policy interface {
	// Type returns the type identifier for this policy
	Type() SplitType

	// Validate checks the policy inputs against the total before any share is computed
	Validate(total money.Amount, participants []int64) error

	// Calculate computes one share per participant, in participant order
	Calculate(total money.Amount, participants []int64) ([]Share, error)

	sealed()
}

var (
	ErrShareMismatch   = errors.New("shares do not add up to the total")
	ErrInvalidAmount   = errors.New("amounts cannot be negative")
	ErrInvalidPolicy   = errors.New("unknown split type")
	ErrMissingInputs   = errors.New("split inputs required for this split type")
	ErrNoParticipants  = errors.New("at least one participant is required")
	ErrDuplicateMember = errors.New("participant listed more than once")
)

// Tolerance is the largest accepted difference between a sum of raw inputs and its target.
var Tolerance = decimal.New(1, -2)

// MismatchError reports a sum that is off by more than Tolerance.
type MismatchError struct {
	Err      error
	What     string
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s must add up to %s, got %s", e.What, e.Expected.StringFixed(2), e.Actual.String())
}

func (e *MismatchError) Unwrap() error {
	return e.Err
}

// MismatchDetails is the client-facing form of a MismatchError
type MismatchDetails struct {
	What     string `json:"what"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// DetailsOf returns the sums quoted by a *MismatchError in err's chain, or nil.
func DetailsOf(err error) any {
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		return nil
	}
	return &MismatchDetails{
		What:     mismatch.What,
		Expected: mismatch.Expected.StringFixed(2),
		Actual:   quote(mismatch.Actual),
	}
}

// quote shows d with two decimals unless that would hide sub-cent digits
func quote(d decimal.Decimal) string {
	if d.Equal(d.Round(2)) {
		return d.StringFixed(2)
	}
	return d.String()
}

// CheckSum returns a *MismatchError when actual differs from expected by more than Tolerance.
func CheckSum(err error, what string, expected, actual decimal.Decimal) error {
	if expected.Sub(actual).Abs().GreaterThan(Tolerance) {
		return &MismatchError{Err: err, What: what, Expected: expected, Actual: actual}
	}
	return nil
}

// Allocate splits total across participants under policy.
func Allocate(total money.Amount, participants []int64, policy Policy) ([]Share, error) {
	if len(participants) == 0 {
		return []Share{}, nil
	}
	if total < 0 {
		return nil, ErrInvalidAmount
	}
	if policy == nil {
		return nil, ErrInvalidPolicy
	}
	if err := policy.Validate(total, participants); err != nil {
		return nil, err
	}
	return policy.Calculate(total, participants)
}

// Factory creates split policies based on the requested type
type Factory struct {
	// FallbackToEqual selects Equal for unknown types or missing inputs instead of failing.
	FallbackToEqual bool
}

// NewSplitStrategyFactory creates a new factory instance
func NewSplitStrategyFactory(fallbackToEqual bool) *Factory {
	return &Factory{FallbackToEqual: fallbackToEqual}
}

// Create returns the policy for splitType. inputs holds raw per-participant amounts for
// Custom or percentages for Percentage and is ignored for Equal.
func (f *Factory) Create(splitType SplitType, inputs map[int64]decimal.Decimal) (Policy, error) {
	switch splitType {
	case SplitTypeEqual:
		return Equal{}, nil
	case SplitTypeCustom:
		if len(inputs) == 0 {
			return f.fallback(splitType, ErrMissingInputs)
		}
		return Custom{Amounts: inputs}, nil
	case SplitTypePercentage:
		if len(inputs) == 0 {
			return f.fallback(splitType, ErrMissingInputs)
		}
		return Percentage{Percents: inputs}, nil
	default:
		return f.fallback(splitType, ErrInvalidPolicy)
	}
}

// CreateFromString creates a policy from a string type (useful for API requests)
func (f *Factory) CreateFromString(splitType string, inputs map[int64]decimal.Decimal) (Policy, error) {
	return f.Create(ParseSplitType(splitType), inputs)
}

func (f *Factory) fallback(splitType SplitType, cause error) (Policy, error) {
	if f.FallbackToEqual {
		slog.Warn("Falling back to equal split", "split_type", splitType, "reason", cause)
		return Equal{}, nil
	}
	return nil, fmt.Errorf("%w: %q", cause, splitType)
}

// ParseSplitType normalizes s, mapping legacy names to their current type.
func ParseSplitType(s string) SplitType {
	s = strings.ToUpper(strings.TrimSpace(s))
	if t, ok := aliases[s]; ok {
		return t
	}
	return SplitType(s)
}

func checkDistinct(participants []int64) error {
	seen := make(map[int64]struct{}, len(participants))
	for _, id := range participants {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateMember, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func rawFor(inputs map[int64]decimal.Decimal, id int64) decimal.Decimal {
	if v, ok := inputs[id]; ok {
		return v
	}
	return decimal.Zero
}

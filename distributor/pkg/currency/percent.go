package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrPercentOutOfRange = errors.New("percent must be between 0 and 100 inclusive")

var hundred = decimal.NewFromInt(100)

// ratioPrecision is the number of decimal places kept by Ratio.
const ratioPrecision = 8

// Percent is a ratio in [0, 100]. It is used both as a fee rate and as a
// share of the prize.
type Percent struct {
	value decimal.Decimal
}

// NewPercent validates v and returns it as a Percent.
func NewPercent(v decimal.Decimal) (Percent, error) {
	if v.IsNegative() || v.GreaterThan(hundred) {
		return Percent{}, fmt.Errorf("%w: %s", ErrPercentOutOfRange, v)
	}
	return Percent{value: v}, nil
}

// PercentFromFloat is NewPercent for float inputs.
func PercentFromFloat(v float64) (Percent, error) {
	return NewPercent(decimal.NewFromFloat(v))
}

// MustPercent is PercentFromFloat for constants and tests; it panics on
// out-of-range input.
func MustPercent(v float64) Percent {
	p, err := PercentFromFloat(v)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePercent parses "12.5" or "12.5%".
func ParsePercent(s string) (Percent, error) {
	d, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return Percent{}, fmt.Errorf("invalid percent %q: %w", s, err)
	}
	return NewPercent(d)
}

// Ratio returns part/whole as a percent, rounded to eight decimal places.
func Ratio(part, whole Amount) (Percent, error) {
	if whole.IsZero() {
		return Percent{}, ErrDivisionByZero
	}
	v := decimal.NewFromInt(part.stroops).Shift(2).DivRound(decimal.NewFromInt(whole.stroops), ratioPrecision)
	return NewPercent(v)
}

// Decimal returns the percent value, e.g. 12.5 for 12.5%.
func (p Percent) Decimal() decimal.Decimal {
	return p.value
}

// Apply returns p% of a, rounded half up to the nearest stroop. The result
// never exceeds a.
func (p Percent) Apply(a Amount) Amount {
	v := decimal.NewFromInt(a.stroops).Mul(p.value).Shift(-2).Round(0)
	return Amount{stroops: v.IntPart()}
}

func (p Percent) Cmp(o Percent) int {
	return p.value.Cmp(o.value)
}

func (p Percent) Equal(o Percent) bool {
	return p.value.Equal(o.value)
}

func (p Percent) LessThan(o Percent) bool {
	return p.value.LessThan(o.value)
}

func (p Percent) String() string {
	return p.value.String() + "%"
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return p.value.MarshalJSON()
}

func (p *Percent) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	v, err := NewPercent(d)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

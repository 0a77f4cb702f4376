// Package currency holds the exact monetary types used by the distributor:
// Amount, a non-negative count of stroops, and Percent, a ratio in [0, 100].
package currency

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/amount"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// StroopsPerLumen is the number of stroops in one XLM.
const StroopsPerLumen = 10_000_000

var (
	ErrNegativeAmount = errors.New("amount must be greater than or equal to 0")
	ErrAmountOverflow = errors.New("amount overflows")
	ErrDivisionByZero = errors.New("division by zero")
)

var printer = message.NewPrinter(language.English)

// Amount is a non-negative quantity of lumens stored as stroops. The zero value
// is zero lumens.
type Amount struct {
	stroops int64
}

// Zero is an empty amount.
var Zero = Amount{}

// New returns an Amount of the given stroops.
func New(stroops int64) (Amount, error) {
	if stroops < 0 {
		return Amount{}, fmt.Errorf("%w: %d stroops", ErrNegativeAmount, stroops)
	}
	return Amount{stroops: stroops}, nil
}

// MustNew is New for constants and tests; it panics on negative input.
func MustNew(stroops int64) Amount {
	a, err := New(stroops)
	if err != nil {
		panic(err)
	}
	return a
}

// FromLumens converts a lumen quantity to stroops, rounding half up to the
// nearest stroop.
func FromLumens(lumens decimal.Decimal) (Amount, error) {
	stroops := lumens.Shift(7).Round(0)
	if stroops.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return Amount{}, fmt.Errorf("%w: %s XLM", ErrAmountOverflow, lumens)
	}
	return New(stroops.IntPart())
}

// ParseLumens parses a decimal lumen string such as "1500.25".
func ParseLumens(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("invalid lumen amount %q: %w", s, err)
	}
	return FromLumens(d)
}

// Stroops returns the amount in stroops.
func (a Amount) Stroops() int64 {
	return a.stroops
}

// Lumens returns the exact amount in XLM.
func (a Amount) Lumens() decimal.Decimal {
	return decimal.New(a.stroops, -7)
}

// LedgerString renders the amount the way payment operations expect it,
// with seven fractional digits.
func (a Amount) LedgerString() string {
	return amount.StringFromInt64(a.stroops)
}

func (a Amount) IsZero() bool {
	return a.stroops == 0
}

// Add returns a+b, failing when the sum does not fit in an int64.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.stroops > math.MaxInt64-b.stroops {
		return Amount{}, fmt.Errorf("%w: %d + %d", ErrAmountOverflow, a.stroops, b.stroops)
	}
	return Amount{stroops: a.stroops + b.stroops}, nil
}

// Sub returns a-b, failing when b is greater than a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b.stroops > a.stroops {
		return Amount{}, fmt.Errorf("%w: %d - %d", ErrNegativeAmount, a.stroops, b.stroops)
	}
	return Amount{stroops: a.stroops - b.stroops}, nil
}

// Div returns the integer quotient a/b expressed in stroops.
func (a Amount) Div(b Amount) (Amount, error) {
	if b.stroops == 0 {
		return Amount{}, ErrDivisionByZero
	}
	return Amount{stroops: a.stroops / b.stroops}, nil
}

// DivInt returns a/n truncated to the stroop.
func (a Amount) DivInt(n int64) (Amount, error) {
	switch {
	case n == 0:
		return Amount{}, ErrDivisionByZero
	case n < 0:
		return Amount{}, fmt.Errorf("%w: divisor %d", ErrNegativeAmount, n)
	}
	return Amount{stroops: a.stroops / n}, nil
}

// Cmp returns -1, 0 or +1 depending on whether a is less than, equal to or
// greater than b.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.stroops < b.stroops:
		return -1
	case a.stroops > b.stroops:
		return 1
	default:
		return 0
	}
}

func (a Amount) LessThan(b Amount) bool {
	return a.stroops < b.stroops
}

// Compare relates a to b and returns the absolute difference.
func (a Amount) Compare(b Amount) Comparison {
	c := Comparison{Relation: Relation(a.Cmp(b))}
	if a.stroops >= b.stroops {
		c.Delta = Amount{stroops: a.stroops - b.stroops}
	} else {
		c.Delta = Amount{stroops: b.stroops - a.stroops}
	}
	return c
}

// String renders the amount as "1,234.5 XLM (12,345,000,000 stroops)".
func (a Amount) String() string {
	whole := a.stroops / StroopsPerLumen
	frac := a.stroops % StroopsPerLumen
	lumens := printer.Sprintf("%d", whole)
	if frac != 0 {
		lumens += "." + strings.TrimRight(fmt.Sprintf("%07d", frac), "0")
	}
	return lumens + " XLM (" + printer.Sprintf("%d", a.stroops) + " stroops)"
}

// GroupDigits renders n with thousands separators.
func GroupDigits(n int64) string {
	return printer.Sprintf("%d", n)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.stroops)
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var stroops int64
	if err := json.Unmarshal(data, &stroops); err != nil {
		return err
	}
	v, err := New(stroops)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Relation is the outcome of comparing two amounts.
type Relation int

const (
	Lesser  Relation = -1
	Equal   Relation = 0
	Greater Relation = 1
)

func (r Relation) String() string {
	switch r {
	case Lesser:
		return "lesser than"
	case Equal:
		return "equal to"
	case Greater:
		return "greater than"
	default:
		return fmt.Sprintf("Relation(%d)", int(r))
	}
}

func (r Relation) MarshalText() ([]byte, error) {
	switch r {
	case Lesser:
		return []byte("lesser"), nil
	case Equal:
		return []byte("equal"), nil
	case Greater:
		return []byte("greater"), nil
	}
	return nil, fmt.Errorf("unknown relation %d", int(r))
}

// Comparison is a relation together with the absolute delta between the
// compared amounts.
type Comparison struct {
	Relation Relation `json:"relation"`
	Delta    Amount   `json:"delta"`
}

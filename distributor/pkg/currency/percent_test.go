package currency

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPool_Currency_Percent_Bounds(t *testing.T) {
	t.Parallel()

	for _, v := range []float64{0, 0.5, 10, 100} {
		_, err := PercentFromFloat(v)
		require.NoError(t, err, "%v", v)
	}
	for _, v := range []float64{-0.0001, 100.0001, 250} {
		_, err := PercentFromFloat(v)
		require.ErrorIs(t, err, ErrPercentOutOfRange, "%v", v)
	}
	require.Panics(t, func() { MustPercent(101) })
}

func TestPool_Currency_Percent_Parse(t *testing.T) {
	t.Parallel()

	p, err := ParsePercent("12.5%")
	require.NoError(t, err)
	require.Equal(t, "12.5%", p.String())

	p, err = ParsePercent(" 3 ")
	require.NoError(t, err)
	require.True(t, p.Equal(MustPercent(3)))

	_, err = ParsePercent("abc")
	require.Error(t, err)
}

func TestPool_Currency_Percent_Apply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		percent float64
		amount  int64
		want    int64
	}{
		{"flat ten percent", 10, 700, 70},
		{"zero fee", 0, 12345, 0},
		{"full", 100, 12345, 12345},
		{"rounds half up", 5, 10, 1},
		{"rounds down below half", 4, 10, 0},
		{"fractional rate", 2.5, 1_000_000, 25_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := MustPercent(tt.percent).Apply(MustNew(tt.amount))
			require.Equal(t, tt.want, got.Stroops())
		})
	}
}

func TestPool_Currency_Percent_Ratio(t *testing.T) {
	t.Parallel()

	p, err := Ratio(MustNew(200), MustNew(1000))
	require.NoError(t, err)
	require.True(t, p.Equal(MustPercent(20)))

	p, err = Ratio(MustNew(1), MustNew(3))
	require.NoError(t, err)
	require.True(t, p.Decimal().Equal(decimal.RequireFromString("33.33333333")))

	_, err = Ratio(MustNew(1), Zero)
	require.ErrorIs(t, err, ErrDivisionByZero)

	_, err = Ratio(MustNew(1001), MustNew(1000))
	require.ErrorIs(t, err, ErrPercentOutOfRange)
}

func TestPool_Currency_Percent_Ordering(t *testing.T) {
	t.Parallel()

	low, high := MustPercent(1), MustPercent(2.5)
	require.True(t, low.LessThan(high))
	require.Equal(t, -1, low.Cmp(high))
	require.Equal(t, 1, high.Cmp(low))
	require.Equal(t, 0, low.Cmp(MustPercent(1)))
}

func TestPool_Currency_Percent_JSON(t *testing.T) {
	t.Parallel()

	var p Percent
	require.NoError(t, json.Unmarshal([]byte(`2.5`), &p))
	require.True(t, p.Equal(MustPercent(2.5)))
	require.NoError(t, json.Unmarshal([]byte(`"7"`), &p))
	require.True(t, p.Equal(MustPercent(7)))
	require.ErrorIs(t, json.Unmarshal([]byte(`120`), &p), ErrPercentOutOfRange)
}

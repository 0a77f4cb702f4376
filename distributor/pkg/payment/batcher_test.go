package payment

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/require"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/account"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
)

func randomAccount(t *testing.T) account.Account {
	t.Helper()
	a, err := account.New(keypair.MustRandom().Address())
	require.NoError(t, err)
	return a
}

func TestPool_Payment_Batcher_Sizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		payments int
		want     []int
	}{
		{0, nil},
		{1, []int{1}},
		{100, []int{100}},
		{101, []int{100, 1}},
		{250, []int{100, 100, 50}},
		{300, []int{100, 100, 100}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d payments", tt.payments), func(t *testing.T) {
			t.Parallel()
			b, err := NewBatcher("memo")
			require.NoError(t, err)
			for i := 0; i < tt.payments; i++ {
				require.NoError(t, b.Add(randomAccount(t), currency.MustNew(int64(i+1))))
			}
			var sizes []int
			for _, batch := range b.Batches() {
				sizes = append(sizes, len(batch.Payments))
				require.Equal(t, "memo", batch.Memo)
			}
			require.Equal(t, tt.want, sizes)
			require.Equal(t, tt.payments, b.Payments())
		})
	}
}

func TestPool_Payment_Batcher_Order(t *testing.T) {
	t.Parallel()

	b, err := NewBatcher("")
	require.NoError(t, err)
	var added []account.Account
	for i := 0; i < 205; i++ {
		a := randomAccount(t)
		added = append(added, a)
		require.NoError(t, b.Add(a, currency.MustNew(int64(i+1))))
	}

	var seen []account.Account
	for _, batch := range b.Batches() {
		for _, p := range batch.Payments {
			seen = append(seen, p.Destination)
		}
	}
	require.Equal(t, added, seen)
}

func TestPool_Payment_Batcher_Rejects(t *testing.T) {
	t.Parallel()

	_, err := NewBatcher(strings.Repeat("x", MaxMemoBytes+1))
	require.ErrorIs(t, err, ErrMemoTooLong)

	_, err = NewBatcher(strings.Repeat("x", MaxMemoBytes))
	require.NoError(t, err)

	b, err := NewBatcher("")
	require.NoError(t, err)
	require.ErrorIs(t, b.Add(randomAccount(t), currency.Zero), ErrZeroPayment)
	require.Empty(t, b.Batches())
}

func TestPool_Payment_Batcher_BatchesAreCopies(t *testing.T) {
	t.Parallel()

	b, err := NewBatcher("")
	require.NoError(t, err)
	require.NoError(t, b.Add(randomAccount(t), currency.MustNew(5)))

	batches := b.Batches()
	batches[0].Payments[0].Amount = currency.MustNew(1_000)
	require.Equal(t, int64(5), b.Batches()[0].Payments[0].Amount.Stroops())
}

func TestPool_Payment_Batch_Total(t *testing.T) {
	t.Parallel()

	batch := Batch{Payments: []Payment{
		{Destination: randomAccount(t), Amount: currency.MustNew(7)},
		{Destination: randomAccount(t), Amount: currency.MustNew(35)},
	}}
	total, err := batch.Total()
	require.NoError(t, err)
	require.Equal(t, int64(42), total.Stroops())
}

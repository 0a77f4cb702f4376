package distribution

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/require"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/account"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/payment"
)

func xlm(n int64) currency.Amount {
	return currency.MustNew(n * currency.StroopsPerLumen)
}

func randomAccount(t *testing.T) account.Account {
	t.Helper()
	a, err := account.New(keypair.MustRandom().Address())
	require.NoError(t, err)
	return a
}

func voters(t *testing.T, stakes ...currency.Amount) []account.Voter {
	t.Helper()
	out := make([]account.Voter, len(stakes))
	for i, s := range stakes {
		out[i] = account.Voter{Account: randomAccount(t), Stake: s}
	}
	return out
}

func flatSchedule(t *testing.T, fee float64) *FeeSchedule {
	t.Helper()
	s, err := NewFeeSchedule(FeeScheduleEntry{Threshold: currency.Zero, Fee: currency.MustPercent(fee)})
	require.NoError(t, err)
	return s
}

func seqOf(vs []account.Voter) iter.Seq2[account.Voter, error] {
	return func(yield func(account.Voter, error) bool) {
		for _, v := range vs {
			if !yield(v, nil) {
				return
			}
		}
	}
}

var errConsumed = errors.New("voters already consumed")

type fakeSource struct {
	accounts int64
	supply   currency.Amount
	total    currency.Amount
	voters   []account.Voter
	// failAt makes the stream fail before yielding the voter at that index.
	failAt int
	err    error

	ranged int
	read   int
}

func (f *fakeSource) CountAccounts(context.Context) (int64, error) { return f.accounts, nil }
func (f *fakeSource) CountVoters(context.Context) (int64, error)   { return int64(len(f.voters)), nil }
func (f *fakeSource) CirculatingSupply(context.Context) (currency.Amount, error) {
	return f.supply, nil
}
func (f *fakeSource) TotalVotes(context.Context) (currency.Amount, error) { return f.total, nil }

func (f *fakeSource) Voters(ctx context.Context) iter.Seq2[account.Voter, error] {
	return func(yield func(account.Voter, error) bool) {
		f.ranged++
		if f.ranged > 1 {
			yield(account.Voter{}, errConsumed)
			return
		}
		for i, v := range f.voters {
			if f.err != nil && i == f.failAt {
				yield(account.Voter{}, f.err)
				return
			}
			f.read++
			if !yield(v, nil) {
				return
			}
		}
	}
}

type recordingSubmitter struct {
	batches []payment.Batch
	reject  map[int]string
}

func (s *recordingSubmitter) Submit(_ context.Context, index int, batch payment.Batch) error {
	s.batches = append(s.batches, batch)
	if reason, ok := s.reject[index]; ok {
		return &payment.TransactionRejectedError{Index: index, Reason: reason}
	}
	return nil
}

func (s *recordingSubmitter) payments() []payment.Payment {
	var out []payment.Payment
	for _, b := range s.batches {
		out = append(out, b.Payments...)
	}
	return out
}

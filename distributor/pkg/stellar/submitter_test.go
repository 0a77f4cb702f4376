package stellar

import (
	"context"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/require"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/account"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/payment"
	pooltesting "github.com/Stellar-Pool/stellar-pool-service/utils/pkg/testing"
)

type fakeNetwork struct {
	seq       int64
	loads     int
	submitted []*txnbuild.Transaction
	fail      map[int]error
}

func (n *fakeNetwork) Passphrase() string { return network.TestNetworkPassphrase }

func (n *fakeNetwork) AccountOf(_ context.Context, address string) (txnbuild.SimpleAccount, error) {
	n.loads++
	return txnbuild.NewSimpleAccount(address, n.seq), nil
}

func (n *fakeNetwork) SubmitTransaction(_ context.Context, tx *txnbuild.Transaction) error {
	n.submitted = append(n.submitted, tx)
	if err := n.fail[len(n.submitted)]; err != nil {
		return err
	}
	n.seq = tx.SourceAccount().Sequence
	return nil
}

func testBatch(t *testing.T, n int, memo string) payment.Batch {
	t.Helper()
	b := payment.Batch{Memo: memo}
	for i := 0; i < n; i++ {
		b.Payments = append(b.Payments, payment.Payment{
			Destination: account.MustNew(keypair.MustRandom().Address()),
			Amount:      currency.MustNew(int64(i+1) * 1_234_567),
		})
	}
	return b
}

func newTestSubmitter(t *testing.T, net *fakeNetwork) (*Submitter, *keypair.Full) {
	t.Helper()
	bank := keypair.MustRandom()
	s, err := NewSubmitter(context.Background(), SubmitterConfig{
		Logger:  pooltesting.NewLogger(),
		Network: net,
		Seed:    bank.Seed(),
	})
	require.NoError(t, err)
	return s, bank
}

func TestPool_Stellar_Submitter_BuildsPaymentTransactions(t *testing.T) {
	t.Parallel()

	net := &fakeNetwork{seq: 100}
	s, bank := newTestSubmitter(t, net)
	require.Equal(t, bank.Address(), s.Address())
	require.Equal(t, 1, net.loads)

	batch := testBatch(t, 3, "Thanks for voting!")
	require.NoError(t, s.Submit(context.Background(), 1, batch))
	require.NoError(t, s.Submit(context.Background(), 2, testBatch(t, 1, "")))
	require.Len(t, net.submitted, 2)

	tx := net.submitted[0]
	require.Equal(t, bank.Address(), tx.SourceAccount().AccountID)
	require.Equal(t, int64(101), tx.SourceAccount().Sequence)
	require.Equal(t, txnbuild.MemoText("Thanks for voting!"), tx.Memo())
	require.Equal(t, int64(txnbuild.MinBaseFee), tx.BaseFee())
	require.Len(t, tx.Signatures(), 1)

	ops := tx.Operations()
	require.Len(t, ops, 3)
	for i, op := range ops {
		p, ok := op.(*txnbuild.Payment)
		require.True(t, ok)
		require.Equal(t, batch.Payments[i].Destination.Address(), p.Destination)
		require.Equal(t, batch.Payments[i].Amount.LedgerString(), p.Amount)
		require.True(t, p.Asset.IsNative())
	}

	require.Equal(t, int64(102), net.submitted[1].SourceAccount().Sequence)
	require.Nil(t, net.submitted[1].Memo())
	require.Equal(t, 1, net.loads)
}

func TestPool_Stellar_Submitter_RefusedTransaction(t *testing.T) {
	t.Parallel()

	net := &fakeNetwork{seq: 7, fail: map[int]error{2: &ResultError{Code: "tx_bad_seq"}}}
	s, _ := newTestSubmitter(t, net)

	require.NoError(t, s.Submit(context.Background(), 1, testBatch(t, 2, "")))

	err := s.Submit(context.Background(), 2, testBatch(t, 2, ""))
	var rejected *payment.TransactionRejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, 2, rejected.Index)
	require.Equal(t, "tx_bad_seq", rejected.Reason)

	// The next batch reloads the sequence number and reuses the refused one.
	require.NoError(t, s.Submit(context.Background(), 3, testBatch(t, 2, "")))
	require.Equal(t, 2, net.loads)
	require.Equal(t, int64(9), net.submitted[2].SourceAccount().Sequence)
}

func TestPool_Stellar_SubmitterConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := SubmitterConfig{Logger: pooltesting.NewLogger(), Network: &fakeNetwork{}, Seed: keypair.MustRandom().Seed()}
	require.NoError(t, cfg.Validate())
	require.Equal(t, int64(txnbuild.MinBaseFee), cfg.BaseFee)

	cfg.BaseFee = 10
	require.Error(t, cfg.Validate())

	_, err := NewSubmitter(context.Background(), SubmitterConfig{
		Logger:  pooltesting.NewLogger(),
		Network: &fakeNetwork{},
		Seed:    keypair.MustRandom().Address(),
	})
	require.ErrorContains(t, err, "invalid bank secret seed")
}

func TestPool_Stellar_ResolvePassphrase(t *testing.T) {
	t.Parallel()

	require.Equal(t, network.PublicNetworkPassphrase, ResolvePassphrase(""))
	require.Equal(t, network.PublicNetworkPassphrase, ResolvePassphrase("public"))
	require.Equal(t, network.TestNetworkPassphrase, ResolvePassphrase("Testnet"))
	require.Equal(t, "Standalone Network ; February 2017", ResolvePassphrase("Standalone Network ; February 2017"))
}

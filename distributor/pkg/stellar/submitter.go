package stellar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/payment"
)

type SubmitterConfig struct {
	Logger  *slog.Logger
	Network Network
	// Seed is the secret seed of the bank account that funds the payments.
	Seed    string
	BaseFee int64
}

func (cfg *SubmitterConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Network == nil {
		return errors.New("network is required")
	}
	if cfg.Seed == "" {
		return errors.New("bank secret seed is required")
	}
	if cfg.BaseFee == 0 {
		cfg.BaseFee = txnbuild.MinBaseFee
	}
	if cfg.BaseFee < txnbuild.MinBaseFee {
		return fmt.Errorf("base fee must be at least %d stroops", txnbuild.MinBaseFee)
	}
	return nil
}

// Submitter signs each batch as one payment transaction from the bank
// account. The sequence number is loaded once and advanced locally after each
// accepted transaction; after a refused one it is reloaded from the network.
type Submitter struct {
	log    *slog.Logger
	cfg    SubmitterConfig
	keys   *keypair.Full
	source txnbuild.SimpleAccount
	stale  bool
}

func NewSubmitter(ctx context.Context, cfg SubmitterConfig) (*Submitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	keys, err := keypair.ParseFull(cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("invalid bank secret seed: %w", err)
	}
	source, err := cfg.Network.AccountOf(ctx, keys.Address())
	if err != nil {
		return nil, err
	}
	cfg.Logger.Info("stellar: loaded bank account", "account", keys.Address(), "sequence", source.Sequence)
	return &Submitter{log: cfg.Logger, cfg: cfg, keys: keys, source: source}, nil
}

// Address is the bank account the payments are sent from.
func (s *Submitter) Address() string {
	return s.keys.Address()
}

func (s *Submitter) Submit(ctx context.Context, index int, batch payment.Batch) error {
	if s.stale {
		if err := s.reload(ctx); err != nil {
			return &payment.TransactionRejectedError{Index: index, Reason: "sequence number unavailable", Err: err}
		}
	}

	source := s.source
	tx, err := s.build(&source, batch)
	if err != nil {
		return &payment.TransactionRejectedError{Index: index, Reason: "invalid transaction", Err: err}
	}
	if err := s.cfg.Network.SubmitTransaction(ctx, tx); err != nil {
		s.stale = true
		return &payment.TransactionRejectedError{Index: index, Reason: reason(err), Err: err}
	}
	s.source = source

	hash, _ := tx.HashHex(s.cfg.Network.Passphrase())
	s.log.Info("stellar: transaction submitted", "index", index, "operations", len(batch.Payments), "sequence", source.Sequence, "hash", hash)
	return nil
}

func (s *Submitter) build(source *txnbuild.SimpleAccount, batch payment.Batch) (*txnbuild.Transaction, error) {
	ops := make([]txnbuild.Operation, 0, len(batch.Payments))
	for _, p := range batch.Payments {
		ops = append(ops, &txnbuild.Payment{
			Destination: p.Destination.Address(),
			Amount:      p.Amount.LedgerString(),
			Asset:       txnbuild.NativeAsset{},
		})
	}
	var memo txnbuild.Memo
	if batch.Memo != "" {
		memo = txnbuild.MemoText(batch.Memo)
	}
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        source,
		IncrementSequenceNum: true,
		Operations:           ops,
		BaseFee:              s.cfg.BaseFee,
		Memo:                 memo,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
	})
	if err != nil {
		return nil, err
	}
	return tx.Sign(s.cfg.Network.Passphrase(), s.keys)
}

// reload refreshes the sequence number, keeping the local one when the
// network has not caught up with transactions still pending.
func (s *Submitter) reload(ctx context.Context) error {
	fresh, err := s.cfg.Network.AccountOf(ctx, s.keys.Address())
	if err != nil {
		return err
	}
	if fresh.Sequence > s.source.Sequence {
		s.source.Sequence = fresh.Sequence
	}
	s.stale = false
	s.log.Debug("stellar: reloaded sequence number", "sequence", s.source.Sequence)
	return nil
}

func reason(err error) string {
	var rerr *ResultError
	if errors.As(err, &rerr) {
		return rerr.Code
	}
	return err.Error()
}

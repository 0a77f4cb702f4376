package stellar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/txnbuild"

	"github.com/Stellar-Pool/stellar-pool-service/utils/pkg/retry"
)

const defaultHorizonTimeout = 60 * time.Second

type HorizonConfig struct {
	Logger     *slog.Logger
	URL        string
	Passphrase string
	HTTPClient *http.Client
	Retry      retry.Config
}

func (cfg *HorizonConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.URL == "" {
		return errors.New("horizon url is required")
	}
	if cfg.Passphrase == "" {
		return errors.New("network passphrase is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHorizonTimeout}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return nil
}

// HorizonNetwork reads accounts from and submits transactions to a Horizon
// server.
type HorizonNetwork struct {
	log    *slog.Logger
	cfg    HorizonConfig
	client *horizonclient.Client
}

func NewHorizonNetwork(cfg HorizonConfig) (*HorizonNetwork, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HorizonNetwork{
		log: cfg.Logger,
		cfg: cfg,
		client: &horizonclient.Client{
			HorizonURL: strings.TrimSuffix(cfg.URL, "/") + "/",
			HTTP:       cfg.HTTPClient,
		},
	}, nil
}

func (h *HorizonNetwork) Passphrase() string {
	return h.cfg.Passphrase
}

func (h *HorizonNetwork) AccountOf(ctx context.Context, address string) (txnbuild.SimpleAccount, error) {
	var seq int64
	err := retry.Do(ctx, h.cfg.Retry, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		acc, err := h.client.AccountDetail(horizonclient.AccountRequest{AccountID: address})
		if err != nil {
			return horizonError(err)
		}
		seq, err = acc.GetSequenceNumber()
		return err
	})
	if err != nil {
		return txnbuild.SimpleAccount{}, fmt.Errorf("failed to load account %s: %w", address, err)
	}
	h.log.Debug("horizon: loaded account", "account", address, "sequence", seq)
	return txnbuild.NewSimpleAccount(address, seq), nil
}

func (h *HorizonNetwork) SubmitTransaction(ctx context.Context, tx *txnbuild.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := h.client.SubmitTransactionWithOptions(tx, horizonclient.SubmitTxOpts{SkipMemoRequiredCheck: true})
	if err != nil {
		return horizonError(err)
	}
	h.log.Debug("horizon: transaction applied", "hash", resp.Hash, "ledger", resp.Ledger)
	return nil
}

// horizonStatusError exposes the HTTP status of a Horizon problem to the
// retry policy.
type horizonStatusError struct {
	status int
	err    error
}

func (e *horizonStatusError) Error() string   { return e.err.Error() }
func (e *horizonStatusError) Unwrap() error   { return e.err }
func (e *horizonStatusError) StatusCode() int { return e.status }

func horizonError(err error) error {
	herr := horizonclient.GetError(err)
	if herr == nil {
		return err
	}
	if codes, cerr := herr.ResultCodes(); cerr == nil && codes != nil && codes.TransactionCode != "" {
		code := codes.TransactionCode
		if len(codes.OperationCodes) > 0 {
			code += " [" + strings.Join(codes.OperationCodes, ", ") + "]"
		}
		return &ResultError{Code: code}
	}
	return &horizonStatusError{
		status: herr.Problem.Status,
		err:    fmt.Errorf("horizon: %s (status %d)", herr.Problem.Title, herr.Problem.Status),
	}
}

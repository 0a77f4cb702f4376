// Package stellar signs payment batches and submits them to the Stellar
// network, either through Horizon or directly to a stellar-core node.
package stellar

import (
	"context"
	"fmt"
	"strings"

	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
)

// Network is the ledger a Submitter talks to.
type Network interface {
	Passphrase() string
	// AccountOf returns the account with its current sequence number.
	AccountOf(ctx context.Context, address string) (txnbuild.SimpleAccount, error)
	SubmitTransaction(ctx context.Context, tx *txnbuild.Transaction) error
}

// ResultError is returned when the network refuses a transaction. Code is the
// result code reported by the network.
type ResultError struct {
	Code      string
	Err       error
	retryable bool
}

func (e *ResultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transaction refused: %s: %v", e.Code, e.Err)
	}
	return "transaction refused: " + e.Code
}

func (e *ResultError) Unwrap() error {
	return e.Err
}

func (e *ResultError) Retryable() bool {
	return e.retryable
}

// ResolvePassphrase maps "public" and "testnet" to their network
// passphrases. Any other non-empty value is used verbatim.
func ResolvePassphrase(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "public", "mainnet", "pubnet":
		return network.PublicNetworkPassphrase
	case "testnet", "test":
		return network.TestNetworkPassphrase
	default:
		return name
	}
}

// Package payment groups payments into ledger transactions and submits them.
package payment

import (
	"errors"
	"fmt"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/account"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
)

const (
	// MaxOperationsPerBatch is the number of payment operations a single
	// transaction carries.
	MaxOperationsPerBatch = 100

	// MaxMemoBytes is the longest text memo the ledger accepts.
	MaxMemoBytes = 28
)

var (
	ErrMemoTooLong = fmt.Errorf("memo must be at most %d bytes", MaxMemoBytes)
	ErrZeroPayment = errors.New("payment amount must be positive")
)

// Payment transfers Amount lumens from the bank to Destination.
type Payment struct {
	Destination account.Account `json:"destination"`
	Amount      currency.Amount `json:"amount"`
}

// Batch is the set of payments submitted as one transaction.
type Batch struct {
	Payments []Payment
	Memo     string
}

// Total sums the batch payments.
func (b Batch) Total() (currency.Amount, error) {
	total := currency.Zero
	for _, p := range b.Payments {
		var err error
		if total, err = total.Add(p.Amount); err != nil {
			return currency.Zero, err
		}
	}
	return total, nil
}

// Batcher accumulates payments into batches of at most MaxOperationsPerBatch
// operations. It never talks to the network.
type Batcher struct {
	memo     string
	batches  []*Batch
	payments int
}

func NewBatcher(memo string) (*Batcher, error) {
	if len(memo) > MaxMemoBytes {
		return nil, fmt.Errorf("%w: %q is %d bytes", ErrMemoTooLong, memo, len(memo))
	}
	return &Batcher{memo: memo}, nil
}

// Add appends a payment to the open batch, opening a new one when none is open
// or the open one is full.
func (b *Batcher) Add(destination account.Account, amount currency.Amount) error {
	if amount.IsZero() {
		return fmt.Errorf("%w: %s", ErrZeroPayment, destination)
	}
	n := len(b.batches)
	if n == 0 || len(b.batches[n-1].Payments) >= MaxOperationsPerBatch {
		b.batches = append(b.batches, &Batch{
			Payments: make([]Payment, 0, MaxOperationsPerBatch),
			Memo:     b.memo,
		})
		n++
	}
	open := b.batches[n-1]
	open.Payments = append(open.Payments, Payment{Destination: destination, Amount: amount})
	b.payments++
	return nil
}

// Batches returns every batch in creation order.
func (b *Batcher) Batches() []Batch {
	out := make([]Batch, len(b.batches))
	for i, batch := range b.batches {
		out[i] = Batch{
			Payments: append([]Payment(nil), batch.Payments...),
			Memo:     batch.Memo,
		}
	}
	return out
}

// Payments is the number of payments added so far.
func (b *Batcher) Payments() int {
	return b.payments
}

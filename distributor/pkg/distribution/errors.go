package distribution

import (
	"errors"
	"fmt"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/account"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
)

// ErrInconsistentSnapshot is returned when a voter's stake exceeds the total
// number of votes read at the start of the run.
var ErrInconsistentSnapshot = errors.New("voter stake exceeds total votes")

// ConfigurationError reports a malformed configuration field. It is fatal for
// the run: nothing is paid.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("malformed configuration: %s %s", e.Field, e.Reason)
}

// SafetyAbortError reports that the running sum of rewards exceeded the prize
// by at least the configured tolerance. The per-account loop stops before any
// payment is submitted.
type SafetyAbortError struct {
	// Index is the 1-based position of the voter whose reward crossed the limit.
	Index      int
	Account    account.Account
	Cumulative currency.Amount
	Prize      currency.Amount
	Delta      currency.Amount
}

func (e *SafetyAbortError) Error() string {
	return fmt.Sprintf("sum of all rewards exceeded the prize by %s at voter #%d (%s)", e.Delta, e.Index, e.Account)
}

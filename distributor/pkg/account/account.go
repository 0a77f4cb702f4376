// Package account holds Stellar account identities and voter records.
package account

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stellar/go/strkey"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
)

// AddressLength is the length of an encoded Stellar account id.
const AddressLength = 56

var ErrInvalidAddress = errors.New("invalid account address")

// Account is a validated Stellar account id.
type Account struct {
	address string
}

// New validates address and returns it as an Account.
func New(address string) (Account, error) {
	if len(address) != AddressLength {
		return Account{}, fmt.Errorf("%w: address must be %d characters long, got %d", ErrInvalidAddress, AddressLength, len(address))
	}
	if address != strings.ToUpper(address) {
		return Account{}, fmt.Errorf("%w: address must contain uppercase letters only", ErrInvalidAddress)
	}
	if !strkey.IsValidEd25519PublicKey(address) {
		return Account{}, fmt.Errorf("%w: %s is not an ed25519 public key", ErrInvalidAddress, address)
	}
	return Account{address: address}, nil
}

// MustNew is New for tests and constants.
func MustNew(address string) Account {
	a, err := New(address)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Account) Address() string {
	return a.address
}

func (a Account) IsZero() bool {
	return a.address == ""
}

func (a Account) String() string {
	return a.address
}

func (a Account) MarshalText() ([]byte, error) {
	return []byte(a.address), nil
}

func (a *Account) UnmarshalText(text []byte) error {
	v, err := New(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Voter is an account that names the pool as its inflation destination,
// together with the balance it votes with.
type Voter struct {
	Account Account
	Stake   currency.Amount
}

func (v Voter) String() string {
	return fmt.Sprintf("%s {has %s}", v.Account, v.Stake)
}

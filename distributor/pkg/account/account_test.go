package account

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/require"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
)

const validAddress = "GDQSOMO3Z2VPQOCKJI2S5BRSVLHO5F5RN6SXKNFLAMGGXINFNTO4YI36"

func TestPool_Account_New(t *testing.T) {
	t.Parallel()

	t.Run("accepts a valid public key", func(t *testing.T) {
		t.Parallel()
		a, err := New(validAddress)
		require.NoError(t, err)
		require.Equal(t, validAddress, a.Address())
		require.False(t, a.IsZero())
	})

	t.Run("accepts random keys", func(t *testing.T) {
		t.Parallel()
		for i := 0; i < 5; i++ {
			_, err := New(keypair.MustRandom().Address())
			require.NoError(t, err)
		}
	})

	tests := []struct {
		name    string
		address string
		reason  string
	}{
		{"too short", validAddress[:55], "56 characters"},
		{"too long", validAddress + "A", "56 characters"},
		{"lower case", strings.ToLower(validAddress), "uppercase"},
		{"bad checksum", validAddress[:55] + "7", "ed25519"},
		{"secret seed", keypair.MustRandom().Seed(), "ed25519"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.address)
			require.ErrorIs(t, err, ErrInvalidAddress)
			require.ErrorContains(t, err, tt.reason)
		})
	}
}

func TestPool_Account_Text(t *testing.T) {
	t.Parallel()

	var got struct {
		Collector Account `json:"collector"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"collector":"`+validAddress+`"}`), &got))
	require.Equal(t, validAddress, got.Collector.Address())

	require.Error(t, json.Unmarshal([]byte(`{"collector":"nope"}`), &got))
}

func TestPool_Account_Voter_String(t *testing.T) {
	t.Parallel()

	v := Voter{Account: MustNew(validAddress), Stake: currency.MustNew(25_000_000)}
	require.Equal(t, validAddress+" {has 2.5 XLM (25,000,000 stroops)}", v.String())
}

package stellar

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stellar/go/network"
	"github.com/stretchr/testify/require"

	"github.com/Stellar-Pool/stellar-pool-service/utils/pkg/retry"
	pooltesting "github.com/Stellar-Pool/stellar-pool-service/utils/pkg/testing"
)

const bankAddress = "GDQSOMO3Z2VPQOCKJI2S5BRSVLHO5F5RN6SXKNFLAMGGXINFNTO4YI36"

func newHorizon(t *testing.T, handler http.HandlerFunc) *HorizonNetwork {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	h, err := NewHorizonNetwork(HorizonConfig{
		Logger:     pooltesting.NewLogger(),
		URL:        srv.URL,
		Passphrase: network.TestNetworkPassphrase,
		Retry:      retry.Config{MaxAttempts: 2, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
	require.NoError(t, err)
	return h
}

func TestPool_Stellar_Horizon_AccountOf(t *testing.T) {
	t.Parallel()

	h := newHorizon(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/"+bankAddress {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"account_id":%q,"sequence":"4242"}`, bankAddress, bankAddress)
	})

	acc, err := h.AccountOf(context.Background(), bankAddress)
	require.NoError(t, err)
	require.Equal(t, bankAddress, acc.AccountID)
	require.Equal(t, int64(4242), acc.Sequence)
}

func TestPool_Stellar_Horizon_SubmitTransaction(t *testing.T) {
	t.Parallel()

	var form string
	h := newHorizon(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm.Get("tx")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"hash":"abc","ledger":7,"successful":true,"max_fee":"100","fee_charged":"100"}`)
	})

	tx := signedTransaction(t)
	require.NoError(t, h.SubmitTransaction(context.Background(), tx))
	blob, err := tx.Base64()
	require.NoError(t, err)
	require.Equal(t, blob, form)
}

func TestPool_Stellar_Horizon_SubmitRefused(t *testing.T) {
	t.Parallel()

	h := newHorizon(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{
			"type": "https://stellar.org/horizon-errors/transaction_failed",
			"title": "Transaction Failed",
			"status": 400,
			"extras": {"result_codes": {"transaction": "tx_failed", "operations": ["op_success", "op_no_destination"]}}
		}`)
	})

	err := h.SubmitTransaction(context.Background(), signedTransaction(t))
	var rerr *ResultError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, "tx_failed [op_success, op_no_destination]", rerr.Code)
}

func TestPool_Stellar_Horizon_AccountNotFound(t *testing.T) {
	t.Parallel()

	var calls int
	h := newHorizon(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"type":"https://stellar.org/horizon-errors/not_found","title":"Resource Missing","status":404}`)
	})

	_, err := h.AccountOf(context.Background(), bankAddress)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "Resource Missing"))
	require.Equal(t, 1, calls)
}

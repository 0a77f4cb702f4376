package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/history"
	pooltesting "github.com/Stellar-Pool/stellar-pool-service/utils/pkg/testing"
)

func xlm(n int64) currency.Amount {
	return currency.MustNew(n * currency.StroopsPerLumen)
}

type fakeSource struct {
	accounts int64
	voters   int64
	supply   currency.Amount
	votes    currency.Amount

	mu    sync.Mutex
	err   error
	calls atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{accounts: 1_234_567, voters: 321, supply: xlm(100_000_000_000), votes: xlm(60_000_000)}
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) failure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeSource) CountAccounts(context.Context) (int64, error) {
	f.calls.Add(1)
	return f.accounts, f.failure()
}

func (f *fakeSource) CountVoters(context.Context) (int64, error) {
	return f.voters, f.failure()
}

func (f *fakeSource) CirculatingSupply(context.Context) (currency.Amount, error) {
	return f.supply, f.failure()
}

func (f *fakeSource) TotalVotes(context.Context) (currency.Amount, error) {
	return f.votes, f.failure()
}

type fakeHistory struct {
	run *history.Run
	err error
}

func (f *fakeHistory) Latest(context.Context) (*history.Run, error) {
	return f.run, f.err
}

func newNetworkInfo(t *testing.T, src NetworkSource, clock clockwork.Clock, ttl time.Duration) *NetworkInfo {
	t.Helper()
	n, err := NewNetworkInfo(NetworkInfoConfig{Logger: pooltesting.NewLogger(), Source: src, Clock: clock, TTL: ttl})
	require.NoError(t, err)
	return n
}

func newRouter(t *testing.T, cfg Config) chi.Router {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = pooltesting.NewLogger()
	}
	h, err := New(cfg)
	require.NoError(t, err)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func newTestLogger() *slog.Logger {
	return pooltesting.NewLogger()
}

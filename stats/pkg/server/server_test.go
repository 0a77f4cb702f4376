package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
	"github.com/Stellar-Pool/stellar-pool-service/stats/pkg/handlers"
	pooltesting "github.com/Stellar-Pool/stellar-pool-service/utils/pkg/testing"
)

type staticSource struct{}

func (staticSource) CountAccounts(context.Context) (int64, error) { return 42, nil }
func (staticSource) CountVoters(context.Context) (int64, error)   { return 7, nil }
func (staticSource) CirculatingSupply(context.Context) (currency.Amount, error) {
	return currency.MustNew(20_000 * currency.StroopsPerLumen), nil
}
func (staticSource) TotalVotes(context.Context) (currency.Amount, error) {
	return currency.MustNew(100 * currency.StroopsPerLumen), nil
}

func newTestConfig(t *testing.T, password string) Config {
	t.Helper()
	log := pooltesting.NewLogger()
	clock := clockwork.NewFakeClock()
	network, err := handlers.NewNetworkInfo(handlers.NetworkInfoConfig{Logger: log, Source: staticSource{}, Clock: clock, TTL: time.Minute})
	require.NoError(t, err)
	return Config{
		Logger:             log,
		ListenAddr:         "127.0.0.1:0",
		VersionInfo:        VersionInfo{Version: "1.2.3", Commit: "abc123", Date: "2026-10-01"},
		Password:           password,
		RateLimitPerMinute: 600,
		RateLimitBurst:     50,
		HandlersConfig:     handlers.Config{Network: network, Clock: clock},
	}
}

func newTestServer(t *testing.T, password string) *httptest.Server {
	t.Helper()
	s, err := New(newTestConfig(t, password))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func httpGet(t *testing.T, url string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestPool_Server_Routes(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "s3cret")

	resp, body := httpGet(t, ts.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok\n", body)

	resp, body = httpGet(t, ts.URL+"/version", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var version VersionInfo
	require.NoError(t, json.Unmarshal([]byte(body), &version))
	require.Equal(t, "1.2.3", version.Version)

	resp, body = httpGet(t, ts.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "stellarpool_stats_http_requests_total")

	resp, body = httpGet(t, ts.URL+"/network/voters-count", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, body, handlers.MessagePasswordRequired)

	resp, body = httpGet(t, ts.URL+"/network/voters-count?password=s3cret", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"SUCCESS","value":{"result":7,"executionTime":0,"executionTimeUnit":"MILLISECONDS"}}`, body)

	resp, body = httpGet(t, ts.URL+"/overview/minimum-votes?password=s3cret", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `"formatted":"10 XLM (100,000,000 stroops)"`)

	resp, body = httpGet(t, ts.URL+"/usage?password=s3cret", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var usage handlers.UsageResponse
	require.NoError(t, json.Unmarshal([]byte(body), &usage))
	require.GreaterOrEqual(t, usage.MaxParallelism, int64(1))
	require.Equal(t, "network/accounts-count", usage.Endpoints[0].Name)
}

func TestPool_Server_CORS(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")
	resp, _ := httpGet(t, ts.URL+"/network/accounts-count", http.Header{"Origin": {"https://stellarpool.example"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPool_Server_RateLimit(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t, "")
	cfg.RateLimitPerMinute = 1
	cfg.RateLimitBurst = 1
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, _ := httpGet(t, ts.URL+"/network/accounts-count", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = httpGet(t, ts.URL+"/network/accounts-count", nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Health checks are never limited.
	resp, _ = httpGet(t, ts.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPool_Server_Run(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cfg := newTestConfig(t, "")
	cfg.ListenAddr = addr
	s, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestPool_Server_Config_Validate(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t, "")
	cfg.ListenAddr = ""
	require.ErrorContains(t, cfg.Validate(), "listen addr is required")

	cfg = newTestConfig(t, "")
	cfg.HandlersConfig.Network = nil
	require.ErrorContains(t, cfg.Validate(), "network info is required")

	cfg = newTestConfig(t, "")
	require.NoError(t, cfg.Validate())
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	require.NotNil(t, cfg.HandlersConfig.Usage)
	require.Same(t, cfg.Logger, cfg.HandlersConfig.Logger)
}

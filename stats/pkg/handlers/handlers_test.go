package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/history"
)

type profiledResponse[T any] struct {
	Status Status `json:"status"`
	Value  struct {
		Result            T      `json:"result"`
		ExecutionTime     int64  `json:"executionTime"`
		ExecutionTimeUnit string `json:"executionTimeUnit"`
	} `json:"value"`
}

func TestPool_Handlers_NetworkEndpoints(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	clock := clockwork.NewFakeClock()
	usage := NewUsage()
	r := newRouter(t, Config{Network: newNetworkInfo(t, src, clock, time.Minute), Usage: usage, Clock: clock})

	rec := get(t, r, "/network/accounts-count")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json; charset=UTF-8", rec.Header().Get("Content-Type"))
	count := decode[profiledResponse[int64]](t, rec)
	require.Equal(t, StatusSuccess, count.Status)
	require.Equal(t, int64(1_234_567), count.Value.Result)
	require.Equal(t, int64(0), count.Value.ExecutionTime)
	require.Equal(t, TimeUnitMilliseconds, count.Value.ExecutionTimeUnit)

	rec = get(t, r, "/network/voters-count")
	require.Equal(t, int64(321), decode[profiledResponse[int64]](t, rec).Value.Result)

	rec = get(t, r, "/network/total-votes")
	votes := decode[profiledResponse[Balance]](t, rec).Value.Result
	require.True(t, votes.Lumens.Equal(decimal.NewFromInt(60_000_000)))
	require.Equal(t, xlm(60_000_000).Stroops(), votes.Stroops)
	require.Equal(t, "60,000,000 XLM (600,000,000,000,000 stroops)", votes.Formatted)

	rec = get(t, r, "/network/circulating-supply")
	supply := decode[profiledResponse[Balance]](t, rec).Value.Result
	require.Equal(t, xlm(100_000_000_000).Stroops(), supply.Stroops)

	rec = get(t, r, "/overview/minimum-votes")
	minimum := decode[profiledResponse[Balance]](t, rec).Value.Result
	require.Equal(t, xlm(50_000_000).Stroops(), minimum.Stroops)

	// Every endpoint above was answered from one snapshot.
	require.Equal(t, int32(1), src.calls.Load())

	report := usage.Report()
	require.Len(t, report.Endpoints, 5)
	require.Equal(t, "network/accounts-count", report.Endpoints[0].Name)
	require.Equal(t, int64(1), report.Endpoints[0].Descriptor.TotalRequests)
	require.NotNil(t, report.Endpoints[0].Descriptor.TotalTime)
	require.Equal(t, TimeUnitMilliseconds, report.Endpoints[0].Descriptor.TotalTimeUnit)
}

func TestPool_Handlers_InternalError(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.setErr(errors.New("core database unreachable"))
	r := newRouter(t, Config{Network: newNetworkInfo(t, src, clockwork.NewFakeClock(), 0)})

	rec := get(t, r, "/overview/minimum-votes")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	problem := decode[Problem](t, rec)
	require.Equal(t, StatusError, problem.Status)
	require.Equal(t, MessageInternalError, problem.Message)
	require.NotContains(t, rec.Body.String(), "unreachable")
}

func TestPool_Handlers_LastRun(t *testing.T) {
	t.Parallel()

	network := newNetworkInfo(t, newFakeSource(), clockwork.NewFakeClock(), 0)

	t.Run("latest run", func(t *testing.T) {
		t.Parallel()
		run := &history.Run{ID: uuid.New(), Outcome: "completed", Executed: true, Prize: xlm(1000), Voters: 3, Batches: 1}
		r := newRouter(t, Config{Network: network, History: &fakeHistory{run: run}})

		rec := get(t, r, "/distribution/last-run")
		require.Equal(t, http.StatusOK, rec.Code)
		got := decode[struct {
			Status Status      `json:"status"`
			Value  history.Run `json:"value"`
		}](t, rec)
		require.Equal(t, StatusSuccess, got.Status)
		require.Equal(t, run.ID, got.Value.ID)
		require.Equal(t, xlm(1000), got.Value.Prize)
	})

	t.Run("no runs", func(t *testing.T) {
		t.Parallel()
		r := newRouter(t, Config{Network: network, History: &fakeHistory{err: history.ErrNoRuns}})
		rec := get(t, r, "/distribution/last-run")
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, MessageNoDistributionRuns, decode[Problem](t, rec).Message)
	})

	t.Run("history failure", func(t *testing.T) {
		t.Parallel()
		r := newRouter(t, Config{Network: network, History: &fakeHistory{err: errors.New("scan run: unexpected null")}})
		rec := get(t, r, "/distribution/last-run")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("history unreachable", func(t *testing.T) {
		t.Parallel()
		r := newRouter(t, Config{Network: network, History: &fakeHistory{err: &pgconn.PgError{Code: "57P01"}}})
		rec := get(t, r, "/distribution/last-run")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, MessageDatabaseUnavailable, decode[Problem](t, rec).Message)
	})

	t.Run("not served without history", func(t *testing.T) {
		t.Parallel()
		r := newRouter(t, Config{Network: network})
		require.Equal(t, http.StatusNotFound, get(t, r, "/distribution/last-run").Code)
	})
}

func TestPool_Handlers_Usage(t *testing.T) {
	t.Parallel()

	usage := NewUsage()
	r := newRouter(t, Config{
		Network: newNetworkInfo(t, newFakeSource(), clockwork.NewFakeClock(), 0),
		History: &fakeHistory{err: history.ErrNoRuns},
		Usage:   usage,
	})
	get(t, r, "/network/voters-count")
	get(t, r, "/network/voters-count")
	get(t, r, "/distribution/last-run")

	rec := get(t, r, "/usage")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[UsageResponse](t, rec)
	require.Len(t, report.Endpoints, 6)

	byName := make(map[string]UsageDescriptor)
	for _, e := range report.Endpoints {
		byName[e.Name] = e.Descriptor
	}
	require.Equal(t, int64(2), byName["network/voters-count"].TotalRequests)
	require.Equal(t, int64(0), byName["network/accounts-count"].TotalRequests)
	require.Equal(t, int64(1), byName["distribution/last-run"].TotalRequests)
	require.Nil(t, byName["distribution/last-run"].TotalTime)
	require.Empty(t, byName["distribution/last-run"].TotalTimeUnit)
}

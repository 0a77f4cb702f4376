// Package handlers implements the pool statistics endpoints.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/distribution"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/history"
	"github.com/Stellar-Pool/stellar-pool-service/stats/pkg/handlers/dberror"
)

// HistoryReader returns the most recent distribution run.
type HistoryReader interface {
	Latest(ctx context.Context) (*history.Run, error)
}

type Config struct {
	Logger  *slog.Logger
	Network *NetworkInfo
	// History is optional; without it /distribution/last-run is not served.
	History HistoryReader
	Usage   *Usage
	Clock   clockwork.Clock
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Network == nil {
		return errors.New("network info is required")
	}
	if cfg.Usage == nil {
		cfg.Usage = NewUsage()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

type Handlers struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Handlers, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Handlers{log: cfg.Logger, cfg: cfg}, nil
}

// Register mounts every endpoint on r.
func (h *Handlers) Register(r chi.Router) {
	r.Get("/usage", h.usage)
	h.profiled(r, "network/accounts-count", func(ctx context.Context) (any, error) {
		snap, err := h.cfg.Network.Snapshot(ctx)
		return snap.Accounts, err
	})
	h.profiled(r, "network/circulating-supply", func(ctx context.Context) (any, error) {
		snap, err := h.cfg.Network.Snapshot(ctx)
		return BalanceOf(snap.CirculatingSupply), err
	})
	h.profiled(r, "network/total-votes", func(ctx context.Context) (any, error) {
		snap, err := h.cfg.Network.Snapshot(ctx)
		return BalanceOf(snap.TotalVotes), err
	})
	h.profiled(r, "network/voters-count", func(ctx context.Context) (any, error) {
		snap, err := h.cfg.Network.Snapshot(ctx)
		return snap.Voters, err
	})
	h.profiled(r, "overview/minimum-votes", func(ctx context.Context) (any, error) {
		snap, err := h.cfg.Network.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		minimum, err := distribution.MinimumVotes(snap.CirculatingSupply)
		if err != nil {
			return nil, err
		}
		return BalanceOf(minimum), nil
	})
	if h.cfg.History != nil {
		h.tracked(r, "distribution/last-run", h.lastRun)
	}
}

// profiled serves fn wrapped in a ProfiledResult and accounts its time.
func (h *Handlers) profiled(r chi.Router, name string, fn func(ctx context.Context) (any, error)) {
	u := h.cfg.Usage.Track(name, true)
	r.Get("/"+name, func(w http.ResponseWriter, req *http.Request) {
		start := h.cfg.Clock.Now()
		v, err := fn(req.Context())
		elapsed := h.cfg.Clock.Since(start)
		u.record(elapsed)
		if err != nil {
			h.internalError(w, name, err)
			return
		}
		writeJSON(h.log, w, http.StatusOK, Ok{
			Value: ProfiledResult{
				Result:            v,
				ExecutionTime:     elapsed.Milliseconds(),
				ExecutionTimeUnit: TimeUnitMilliseconds,
			},
			Status: StatusSuccess,
		})
	})
}

// tracked counts requests to a handler that writes its own response.
func (h *Handlers) tracked(r chi.Router, name string, fn http.HandlerFunc) {
	u := h.cfg.Usage.Track(name, false)
	r.Get("/"+name, func(w http.ResponseWriter, req *http.Request) {
		u.record(0)
		fn(w, req)
	})
}

func (h *Handlers) usage(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.log, w, http.StatusOK, h.cfg.Usage.Report())
}

func (h *Handlers) lastRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.cfg.History.Latest(r.Context())
	switch {
	case errors.Is(err, history.ErrNoRuns):
		writeProblem(h.log, w, http.StatusNotFound, MessageNoDistributionRuns)
		return
	case err != nil:
		h.internalError(w, "distribution/last-run", err)
		return
	}
	writeJSON(h.log, w, http.StatusOK, Ok{Value: run, Status: StatusSuccess})
}

// internalError answers 503 while a database is unreachable and 500 otherwise.
func (h *Handlers) internalError(w http.ResponseWriter, endpoint string, err error) {
	if dberror.IsTransient(err) {
		h.log.Warn("database unavailable", "endpoint", endpoint, "kind", dberror.Classify(err).String(), "error", err)
		writeProblem(h.log, w, http.StatusServiceUnavailable, MessageDatabaseUnavailable)
		return
	}
	h.log.Error(MessageInternalError, "endpoint", endpoint, "error", err)
	writeProblem(h.log, w, http.StatusInternalServerError, MessageInternalError)
}

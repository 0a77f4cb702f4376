package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
	"github.com/Stellar-Pool/stellar-pool-service/stats/pkg/metrics"
)

// NetworkSource answers the aggregate queries behind the network endpoints.
type NetworkSource interface {
	CountAccounts(ctx context.Context) (int64, error)
	CountVoters(ctx context.Context) (int64, error)
	CirculatingSupply(ctx context.Context) (currency.Amount, error)
	TotalVotes(ctx context.Context) (currency.Amount, error)
}

// NetworkSnapshot holds the network figures read in one refresh.
type NetworkSnapshot struct {
	Accounts          int64
	Voters            int64
	CirculatingSupply currency.Amount
	TotalVotes        currency.Amount
	RefreshedAt       time.Time
}

type NetworkInfoConfig struct {
	Logger *slog.Logger
	Source NetworkSource
	Clock  clockwork.Clock
	// TTL is how long a snapshot is served before it is read again. Zero
	// disables caching.
	TTL time.Duration
}

func (cfg *NetworkInfoConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Source == nil {
		return errors.New("network source is required")
	}
	if cfg.TTL < 0 {
		return errors.New("ttl must not be negative")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// NetworkInfo serves cached network snapshots. Concurrent callers that find
// the snapshot stale wait for a single refresh.
type NetworkInfo struct {
	log *slog.Logger
	cfg NetworkInfoConfig

	mu       sync.Mutex
	snapshot *NetworkSnapshot
}

func NewNetworkInfo(cfg NetworkInfoConfig) (*NetworkInfo, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &NetworkInfo{log: cfg.Logger, cfg: cfg}, nil
}

func (n *NetworkInfo) Snapshot(ctx context.Context) (NetworkSnapshot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.snapshot != nil && n.cfg.TTL > 0 && n.cfg.Clock.Since(n.snapshot.RefreshedAt) < n.cfg.TTL {
		return *n.snapshot, nil
	}

	start := time.Now()
	snap, err := n.refresh(ctx)
	metrics.RecordSnapshotRefresh(time.Since(start), err)
	if err != nil {
		return NetworkSnapshot{}, err
	}
	n.snapshot = &snap
	n.log.Debug("network: refreshed snapshot", "accounts", snap.Accounts, "voters", snap.Voters, "duration", time.Since(start))
	return snap, nil
}

func (n *NetworkInfo) refresh(ctx context.Context) (NetworkSnapshot, error) {
	var snap NetworkSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := n.cfg.Source.CountAccounts(gctx)
		if err != nil {
			return fmt.Errorf("failed to count accounts: %w", err)
		}
		snap.Accounts = v
		return nil
	})
	g.Go(func() error {
		v, err := n.cfg.Source.CountVoters(gctx)
		if err != nil {
			return fmt.Errorf("failed to count voters: %w", err)
		}
		snap.Voters = v
		return nil
	})
	g.Go(func() error {
		v, err := n.cfg.Source.CirculatingSupply(gctx)
		if err != nil {
			return fmt.Errorf("failed to read circulating supply: %w", err)
		}
		snap.CirculatingSupply = v
		return nil
	})
	g.Go(func() error {
		v, err := n.cfg.Source.TotalVotes(gctx)
		if err != nil {
			return fmt.Errorf("failed to read total votes: %w", err)
		}
		snap.TotalVotes = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return NetworkSnapshot{}, err
	}
	snap.RefreshedAt = n.cfg.Clock.Now()
	return snap, nil
}

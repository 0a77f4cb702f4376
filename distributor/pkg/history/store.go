// Package history records the outcome of every distribution run.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/distribution"
)

var ErrNoRuns = errors.New("no distribution runs recorded")

// Run is one row of the history table.
type Run struct {
	ID                 uuid.UUID       `json:"runId"`
	StartedAt          time.Time       `json:"startedAt"`
	FinishedAt         time.Time       `json:"finishedAt"`
	Outcome            string          `json:"outcome"`
	Executed           bool            `json:"executed"`
	Prize              currency.Amount `json:"prize"`
	TotalRewards       currency.Amount `json:"totalRewards"`
	TotalActualRewards currency.Amount `json:"totalActualRewards"`
	TotalFees          currency.Amount `json:"totalFees"`
	Voters             int             `json:"voters"`
	Batches            int             `json:"batches"`
	FailedBatches      int             `json:"failedBatches"`
	Summary            json.RawMessage `json:"summary"`
}

// runDetails is what the summary column holds.
type runDetails struct {
	Network distribution.NetworkInfo `json:"network"`
	Summary *distribution.Summary    `json:"summary,omitempty"`
	Abort   *abortDetails            `json:"abort,omitempty"`
}

type abortDetails struct {
	Index      int             `json:"index"`
	Account    string          `json:"account"`
	Cumulative currency.Amount `json:"cumulative"`
	Delta      currency.Amount `json:"delta"`
}

// RunFromResult flattens a distribution result into a history row.
func RunFromResult(res *distribution.Result) (Run, error) {
	run := Run{
		ID:         res.RunID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Outcome:    string(res.Outcome),
		Prize:      res.Prize,
	}
	details := runDetails{Network: res.Network, Summary: res.Summary}
	if s := res.Summary; s != nil {
		run.Executed = s.Executed
		run.TotalRewards = s.TotalRewards
		run.TotalActualRewards = s.TotalActualRewards
		run.TotalFees = s.TotalFees
		run.Voters = s.Voters
		run.Batches = s.Batches
		run.FailedBatches = len(s.FailedBatches)
	}
	if a := res.Abort; a != nil {
		run.Voters = a.Index
		details.Abort = &abortDetails{
			Index:      a.Index,
			Account:    a.Account.Address(),
			Cumulative: a.Cumulative,
			Delta:      a.Delta,
		}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return Run{}, fmt.Errorf("failed to encode run summary: %w", err)
	}
	run.Summary = raw
	return run, nil
}

type StoreConfig struct {
	Logger     *slog.Logger
	ConnString string
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ConnString == "" {
		return errors.New("connection string is required")
	}
	return nil
}

type Store struct {
	log  *slog.Logger
	cfg  StoreConfig
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse history database config: %w", err)
	}
	poolConfig.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create history database pool: %w", err)
	}
	return &Store{log: cfg.Logger, cfg: cfg, pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Record inserts the run described by res.
func (s *Store) Record(ctx context.Context, res *distribution.Result) error {
	run, err := RunFromResult(res)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO distribution_runs (
			run_id, started_at, finished_at, outcome, executed, prize,
			total_rewards, total_actual_rewards, total_fees,
			voters, batches, failed_batches, summary
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Outcome, run.Executed, run.Prize.Stroops(),
		run.TotalRewards.Stroops(), run.TotalActualRewards.Stroops(), run.TotalFees.Stroops(),
		run.Voters, run.Batches, run.FailedBatches, run.Summary,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	s.log.Debug("history: recorded run", "run_id", run.ID.String(), "outcome", run.Outcome)
	return nil
}

// Latest returns the most recently started run.
func (s *Store) Latest(ctx context.Context) (*Run, error) {
	var (
		run                                 Run
		prize, rewards, actualRewards, fees int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT run_id, started_at, finished_at, outcome, executed, prize,
			total_rewards, total_actual_rewards, total_fees,
			voters, batches, failed_batches, summary
		FROM distribution_runs
		ORDER BY started_at DESC
		LIMIT 1`,
	).Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &run.Outcome, &run.Executed, &prize,
		&rewards, &actualRewards, &fees,
		&run.Voters, &run.Batches, &run.FailedBatches, &run.Summary,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest run: %w", err)
	}

	for _, f := range []struct {
		dst *currency.Amount
		v   int64
	}{{&run.Prize, prize}, {&run.TotalRewards, rewards}, {&run.TotalActualRewards, actualRewards}, {&run.TotalFees, fees}} {
		if *f.dst, err = currency.New(f.v); err != nil {
			return nil, err
		}
	}
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()
	return &run, nil
}

// Package distribution computes and pays the inflation rewards of a pool.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/account"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/metrics"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/payment"
)

// MinimumVotesDivisor sets the minimum number of votes a pool needs: the
// circulating supply divided by this value.
const MinimumVotesDivisor = 2000

// DataSource reads the ledger state a run depends on.
type DataSource interface {
	CountAccounts(ctx context.Context) (int64, error)
	CountVoters(ctx context.Context) (int64, error)
	CirculatingSupply(ctx context.Context) (currency.Amount, error)
	TotalVotes(ctx context.Context) (currency.Amount, error)
	// Voters streams every voter once. Ranging over the sequence a second
	// time yields an error.
	Voters(ctx context.Context) iter.Seq2[account.Voter, error]
}

type Outcome string

const (
	OutcomeCompleted           Outcome = "completed"
	OutcomeThresholdNotReached Outcome = "threshold_not_reached"
	OutcomeAborted             Outcome = "aborted"
)

// NetworkInfo is what the run read before distributing.
type NetworkInfo struct {
	Accounts          int64           `json:"accounts"`
	Voters            int64           `json:"voters"`
	CirculatingSupply currency.Amount `json:"circulatingSupply"`
	TotalVotes        currency.Amount `json:"totalVotes"`
	MinimumVotes      currency.Amount `json:"minimumVotes"`
}

// Result describes a finished run. Summary is nil when the vote threshold was
// not reached. Abort is set when the run stopped on the safety limit; no
// payment was submitted in that case.
type Result struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    Outcome
	Prize      currency.Amount
	Network    NetworkInfo
	Summary    *Summary
	Abort      *SafetyAbortError
}

type Config struct {
	Logger       *slog.Logger
	Clock        clockwork.Clock
	DataSource   DataSource
	Submitter    payment.Submitter
	Schedule     *FeeSchedule
	Thresholds   SafetyThresholds
	FeeCollector account.Account
	Memo         string
	// Report receives the human-readable account of the run. Defaults to
	// io.Discard.
	Report io.Writer
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DataSource == nil {
		return errors.New("data source is required")
	}
	if cfg.Submitter == nil {
		return errors.New("submitter is required")
	}
	if cfg.Schedule.Len() == 0 {
		return &ConfigurationError{Field: "feeSchedule", Reason: "- Must not be empty."}
	}
	if cfg.FeeCollector.IsZero() {
		return &ConfigurationError{Field: "feeCollector", Reason: "- Must be set."}
	}
	if len(cfg.Memo) > payment.MaxMemoBytes {
		return &ConfigurationError{
			Field:  "messages.distribution",
			Reason: fmt.Sprintf("- Must be at most %d bytes.", payment.MaxMemoBytes),
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Report == nil {
		cfg.Report = io.Discard
	}
	return nil
}

type Distributor struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Distributor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Distributor{log: cfg.Logger, cfg: cfg}, nil
}

// runState holds the accumulators of one Distribute call.
type runState struct {
	calc       *Calculator
	ledger     *FeeLedger
	batcher    *payment.Batcher
	totalNet   currency.Amount
	notable    int
	skipped    int
	executed   bool
	execReport payment.ExecutionReport
}

// Distribute runs one distribution of prize among the pool voters. It returns
// an error only when the run could not be carried out; a safety abort or an
// unreached vote threshold are outcomes of a successful call.
func (d *Distributor) Distribute(ctx context.Context, prize currency.Amount) (*Result, error) {
	res := &Result{
		RunID:     uuid.New(),
		StartedAt: d.cfg.Clock.Now().UTC(),
		Prize:     prize,
	}
	log := d.log.With("run_id", res.RunID.String())
	report := NewReport(d.cfg.Report)
	start := d.cfg.Clock.Now()

	err := d.distribute(ctx, log, report, res)
	res.FinishedAt = d.cfg.Clock.Now().UTC()
	metrics.DistributionRunDuration.Observe(d.cfg.Clock.Since(start).Seconds())
	if err != nil {
		metrics.DistributionRunsTotal.WithLabelValues("error").Inc()
		log.Error("distribution: run failed", "error", err)
		return nil, err
	}
	if err := report.Err(); err != nil {
		log.Warn("distribution: failed to write report", "error", err)
	}
	metrics.DistributionRunsTotal.WithLabelValues(string(res.Outcome)).Inc()
	log.Info("distribution: run finished", "outcome", res.Outcome, "duration", res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

func (d *Distributor) distribute(ctx context.Context, log *slog.Logger, report *Report, res *Result) error {
	info, err := d.gatherNetworkInfo(ctx, report)
	if err != nil {
		return err
	}
	res.Network = info

	report.Header("Overview")
	report.Printf("Minimum number of votes is %s", info.MinimumVotes)
	if !info.MinimumVotes.LessThan(info.TotalVotes) {
		report.Printf("Threshold has not been reached.")
		log.Info("distribution: vote threshold not reached", "total_votes", info.TotalVotes.Stroops(), "minimum_votes", info.MinimumVotes.Stroops())
		res.Outcome = OutcomeThresholdNotReached
		return nil
	}
	report.Printf("Distributing %s", res.Prize)
	metrics.DistributionRewardsStroops.WithLabelValues("prize").Set(float64(res.Prize.Stroops()))

	calc, err := NewCalculator(res.Prize, info.TotalVotes, d.cfg.Schedule, d.cfg.Thresholds)
	if err != nil {
		return err
	}
	batcher, err := payment.NewBatcher(d.cfg.Memo)
	if err != nil {
		return &ConfigurationError{Field: "messages.distribution", Reason: "- " + err.Error()}
	}
	state := &runState{
		calc:     calc,
		ledger:   NewFeeLedger(),
		batcher:  batcher,
		executed: !payment.IsDryRun(d.cfg.Submitter),
	}

	report.Header("Distribution")
	abort, err := d.accumulate(ctx, log, report, state)
	if err != nil {
		return err
	}
	if abort != nil {
		report.Printf("Attention! Sum of all rewards plus fees exceeded the prize by %s", abort.Delta)
		log.Warn("distribution: safety limit reached, nothing was paid",
			"delta_stroops", abort.Delta.Stroops(), "index", abort.Index, "account", abort.Account.Address())
		res.Outcome = OutcomeAborted
		res.Abort = abort
		return nil
	}

	summary, err := NewSummary(res.Prize, calc.CumulativeGross(), state.totalNet, state.ledger)
	if err != nil {
		return err
	}

	report.Header("Fees")
	report.Printf("Total amount of fees taken is %s", summary.TotalFees)
	report.FeeTiers(summary.FeeTiers)

	report.Header("Payment")
	report.Printf("Paying fees to %s", d.cfg.FeeCollector)
	if summary.TotalFees.IsZero() {
		state.skipped++
	} else if err := state.batcher.Add(d.cfg.FeeCollector, summary.TotalFees); err != nil {
		return fmt.Errorf("failed to add fee collector payment: %w", err)
	}
	d.execute(ctx, log, report, state)

	summary.Executed = state.executed
	summary.Voters = calc.Processed()
	summary.Notable = state.notable
	summary.Payments = state.batcher.Payments()
	summary.SkippedPayments = state.skipped
	summary.Batches = state.execReport.Batches
	summary.FailedBatches = state.execReport.Failures
	report.Summary(summary)

	metrics.DistributionRewardsStroops.WithLabelValues("gross").Set(float64(summary.TotalRewards.Stroops()))
	metrics.DistributionRewardsStroops.WithLabelValues("net").Set(float64(summary.TotalActualRewards.Stroops()))
	metrics.DistributionRewardsStroops.WithLabelValues("fees").Set(float64(summary.TotalFees.Stroops()))
	if summary.RewardsAttention {
		log.Warn("distribution: rewards differ from prize", "relation", summary.RewardsVsPrize.Relation.String(), "delta_stroops", summary.RewardsVsPrize.Delta.Stroops())
	}
	if !summary.FeesReconciled {
		log.Warn("distribution: fee ledger does not reconcile", "relation", summary.FeesVsRecalculated.Relation.String(), "delta_stroops", summary.FeesVsRecalculated.Delta.Stroops())
	}

	res.Outcome = OutcomeCompleted
	res.Summary = &summary
	return nil
}

func (d *Distributor) gatherNetworkInfo(ctx context.Context, report *Report) (NetworkInfo, error) {
	var (
		info NetworkInfo
		err  error
	)
	report.Header("Network info")
	if info.Accounts, err = d.cfg.DataSource.CountAccounts(ctx); err != nil {
		return info, fmt.Errorf("failed to count accounts: %w", err)
	}
	report.Printf("Total number of accounts is %s", currency.GroupDigits(info.Accounts))
	if info.CirculatingSupply, err = d.cfg.DataSource.CirculatingSupply(ctx); err != nil {
		return info, fmt.Errorf("failed to read circulating supply: %w", err)
	}
	report.Printf("These accounts own %s", info.CirculatingSupply)
	if info.TotalVotes, err = d.cfg.DataSource.TotalVotes(ctx); err != nil {
		return info, fmt.Errorf("failed to read total votes: %w", err)
	}
	report.Printf("Total number of votes is %s", info.TotalVotes)
	if info.Voters, err = d.cfg.DataSource.CountVoters(ctx); err != nil {
		return info, fmt.Errorf("failed to count voters: %w", err)
	}
	report.Printf("These votes come from %s accounts", currency.GroupDigits(info.Voters))

	info.MinimumVotes, err = MinimumVotes(info.CirculatingSupply)
	return info, err
}

// MinimumVotes is the number of votes a pool needs for its rewards to be
// distributed.
func MinimumVotes(circulatingSupply currency.Amount) (currency.Amount, error) {
	return circulatingSupply.DivInt(MinimumVotesDivisor)
}

// accumulate runs the per-voter loop. It returns a non-nil SafetyAbortError
// when the prize was overshot.
func (d *Distributor) accumulate(ctx context.Context, log *slog.Logger, report *Report, state *runState) (*SafetyAbortError, error) {
	for rec, err := range state.calc.Rewards(d.cfg.DataSource.Voters(ctx)) {
		if err != nil {
			var abort *SafetyAbortError
			if errors.As(err, &abort) {
				return abort, nil
			}
			return nil, err
		}
		metrics.DistributionVotersProcessed.Inc()

		if err := state.ledger.Record(rec.Fee, rec.FeeAmount); err != nil {
			return nil, err
		}
		if state.totalNet, err = state.totalNet.Add(rec.Net); err != nil {
			return nil, fmt.Errorf("failed to accumulate actual rewards: %w", err)
		}
		if rec.Notable {
			state.notable++
			report.Printf("Pay %s (%s of prize) to %s", rec.Net, rec.PercentOfPrize, rec.Voter)
		}
		if rec.Net.IsZero() {
			state.skipped++
			log.Debug("distribution: skipping zero reward", "account", rec.Voter.Account.Address())
			continue
		}
		if err := state.batcher.Add(rec.Voter.Account, rec.Net); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (d *Distributor) execute(ctx context.Context, log *slog.Logger, report *Report, state *runState) {
	if state.executed {
		report.Printf("Payments are EXECUTED")
	} else {
		report.Printf("It was a NO-OP")
	}
	batches := state.batcher.Batches()
	report.Printf("Payment has %d transactions", len(batches))
	state.execReport = payment.Execute(ctx, log, d.cfg.Submitter, batches, func(r payment.BatchResult) {
		if r.Err != nil {
			report.Printf("  Transaction failed #%d: %v", r.Index, r.Err)
			return
		}
		report.Printf("  Executed transaction #%d", r.Index)
	})
}

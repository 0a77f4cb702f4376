// Package notify tells operators how a distribution run ended.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/distribution"
)

// Notifier reports a finished run. res is nil when the run failed before it
// produced a result; runErr is nil when the run itself succeeded.
type Notifier interface {
	Notify(ctx context.Context, res *distribution.Result, runErr error) error
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, res *distribution.Result, runErr error) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, res, runErr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Severity orders notifications by how much operator attention they need.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Classify decides how loudly a run should be reported.
func Classify(res *distribution.Result, runErr error) Severity {
	switch {
	case runErr != nil || res == nil:
		return SeverityError
	case res.Outcome == distribution.OutcomeAborted:
		return SeverityError
	case res.Summary != nil && len(res.Summary.FailedBatches) > 0:
		return SeverityWarning
	case res.Summary != nil && (res.Summary.RewardsAttention || !res.Summary.FeesReconciled):
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Title is a one-line headline for the run.
func Title(res *distribution.Result, runErr error) string {
	if runErr != nil || res == nil {
		return "Distribution run failed"
	}
	switch res.Outcome {
	case distribution.OutcomeThresholdNotReached:
		return "Distribution skipped: vote threshold not reached"
	case distribution.OutcomeAborted:
		return "Distribution aborted by safety check"
	}
	if res.Summary != nil && !res.Summary.Executed {
		return "Distribution calculated (dry run)"
	}
	return "Distribution completed"
}

// Text renders the plain-text body shared by every channel.
func Text(res *distribution.Result, runErr error) string {
	var b strings.Builder
	if runErr != nil {
		fmt.Fprintf(&b, "Error: %v\n", runErr)
	}
	if res == nil {
		return strings.TrimRight(b.String(), "\n")
	}
	fmt.Fprintf(&b, "Run: %s\n", res.RunID)
	fmt.Fprintf(&b, "Prize: %s\n", res.Prize)
	fmt.Fprintf(&b, "Votes: %s (minimum %s)\n", res.Network.TotalVotes, res.Network.MinimumVotes)
	if res.Abort != nil {
		fmt.Fprintf(&b, "Aborted: %v\n", res.Abort)
	}
	if s := res.Summary; s != nil {
		fmt.Fprintf(&b, "Voters rewarded: %d, payments: %d in %d transactions\n", s.Voters, s.Payments, s.Batches)
		fmt.Fprintf(&b, "Actual rewards: %s\n", s.TotalActualRewards)
		fmt.Fprintf(&b, "Fees: %s\n", s.TotalFees)
		if s.RewardsAttention {
			fmt.Fprintf(&b, "Rewards plus fees are %s the prize by %s\n", s.RewardsVsPrize.Relation, s.RewardsVsPrize.Delta)
		}
		if !s.FeesReconciled {
			fmt.Fprintf(&b, "Fees are %s the recalculated total by %s\n", s.FeesVsRecalculated.Relation, s.FeesVsRecalculated.Delta)
		}
		for _, f := range s.FailedBatches {
			fmt.Fprintf(&b, "Transaction #%d failed: %s\n", f.Index, f.Reason)
		}
	}
	fmt.Fprintf(&b, "Duration: %s", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	return b.String()
}

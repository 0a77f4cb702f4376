package distribution

import (
	"fmt"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/payment"
)

// RewardsAttentionDelta is the distance between distributed rewards and the
// prize from which the summary flags the run.
var RewardsAttentionDelta = currency.MustNew(100)

// Summary is the end-of-run report of a distribution.
type Summary struct {
	Prize              currency.Amount `json:"prize"`
	TotalRewards       currency.Amount `json:"totalRewards"`
	TotalActualRewards currency.Amount `json:"totalActualRewards"`
	TotalFees          currency.Amount `json:"totalFees"`
	RecalculatedFees   currency.Amount `json:"recalculatedFees"`

	// RewardsVsPrize relates gross rewards (actual rewards plus fees) to the prize.
	RewardsVsPrize   currency.Comparison `json:"rewardsVsPrize"`
	RewardsAttention bool                `json:"rewardsAttention"`

	// FeesVsRecalculated relates gross minus net rewards to the fee total
	// recomputed from the ledger.
	FeesVsRecalculated currency.Comparison `json:"feesVsRecalculated"`
	FeesReconciled     bool                `json:"feesReconciled"`

	FeeTiers []FeeTier `json:"feeTiers"`

	Executed        bool                   `json:"executed"`
	Voters          int                    `json:"voters"`
	Notable         int                    `json:"notable"`
	Payments        int                    `json:"payments"`
	SkippedPayments int                    `json:"skippedPayments"`
	Batches         int                    `json:"batches"`
	FailedBatches   []payment.BatchFailure `json:"failedBatches,omitempty"`
}

// NewSummary reconciles the final run totals against the prize and the fee
// ledger.
func NewSummary(prize, totalGross, totalNet currency.Amount, ledger *FeeLedger) (Summary, error) {
	totalFees, err := totalGross.Sub(totalNet)
	if err != nil {
		return Summary{}, fmt.Errorf("actual rewards exceed rewards: %w", err)
	}
	recalculated, err := ledger.TotalFees()
	if err != nil {
		return Summary{}, err
	}

	rewardsVsPrize := totalGross.Compare(prize)
	feesVsRecalculated := totalFees.Compare(recalculated)
	return Summary{
		Prize:              prize,
		TotalRewards:       totalGross,
		TotalActualRewards: totalNet,
		TotalFees:          totalFees,
		RecalculatedFees:   recalculated,
		RewardsVsPrize:     rewardsVsPrize,
		RewardsAttention:   !rewardsVsPrize.Delta.LessThan(RewardsAttentionDelta),
		FeesVsRecalculated: feesVsRecalculated,
		FeesReconciled:     feesVsRecalculated.Relation == currency.Equal,
		FeeTiers:           ledger.Tiers(),
	}, nil
}

package distribution

import (
	"fmt"
	"iter"

	"github.com/holiman/uint256"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/account"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
)

// SafetyThresholds bound the run. Only RewardsExceedPrize can abort it; the
// other two mark rewards worth reporting.
type SafetyThresholds struct {
	RewardsExceedPrize          currency.Amount
	RewardExceedsAmount         currency.Amount
	RewardExceedsPercentOfPrize currency.Percent
}

// RewardRecord is the computed share of a single voter.
type RewardRecord struct {
	Index          int
	Voter          account.Voter
	Gross          currency.Amount
	Fee            currency.Percent
	FeeAmount      currency.Amount
	Net            currency.Amount
	PercentOfPrize currency.Percent
	Notable        bool
}

// Calculator turns a stream of voters into reward records. It keeps the
// cumulative gross reward so that it can stop the run once the prize is
// overshot.
type Calculator struct {
	prize      currency.Amount
	totalVotes currency.Amount
	schedule   *FeeSchedule
	thresholds SafetyThresholds

	processed  int
	cumulative currency.Amount
}

func NewCalculator(prize, totalVotes currency.Amount, schedule *FeeSchedule, thresholds SafetyThresholds) (*Calculator, error) {
	if totalVotes.IsZero() {
		return nil, fmt.Errorf("total votes must be positive")
	}
	if schedule.Len() == 0 {
		return nil, &ConfigurationError{Field: "feeSchedule", Reason: "- Must not be empty."}
	}
	return &Calculator{
		prize:      prize,
		totalVotes: totalVotes,
		schedule:   schedule,
		thresholds: thresholds,
	}, nil
}

// Next computes the reward of the next voter in stream order.
func (c *Calculator) Next(v account.Voter) (RewardRecord, error) {
	if c.totalVotes.LessThan(v.Stake) {
		return RewardRecord{}, fmt.Errorf("%w: %s has %s, total is %s", ErrInconsistentSnapshot, v.Account, v.Stake, c.totalVotes)
	}
	c.processed++

	gross := grossReward(v.Stake, c.totalVotes, c.prize)
	cumulative, err := c.cumulative.Add(gross)
	if err != nil {
		return RewardRecord{}, fmt.Errorf("failed to accumulate rewards: %w", err)
	}
	c.cumulative = cumulative

	if c.prize.LessThan(cumulative) {
		delta, _ := cumulative.Sub(c.prize)
		if !delta.LessThan(c.thresholds.RewardsExceedPrize) {
			return RewardRecord{}, &SafetyAbortError{
				Index:      c.processed,
				Account:    v.Account,
				Cumulative: cumulative,
				Prize:      c.prize,
				Delta:      delta,
			}
		}
	}

	fee, err := c.schedule.Resolve(v.Stake)
	if err != nil {
		return RewardRecord{}, err
	}
	feeAmount := fee.Apply(gross)
	net, err := gross.Sub(feeAmount)
	if err != nil {
		return RewardRecord{}, fmt.Errorf("fee %s exceeds reward %s: %w", feeAmount, gross, err)
	}

	share, err := currency.Ratio(v.Stake, c.totalVotes)
	if err != nil {
		return RewardRecord{}, err
	}

	return RewardRecord{
		Index:          c.processed,
		Voter:          v,
		Gross:          gross,
		Fee:            fee,
		FeeAmount:      feeAmount,
		Net:            net,
		PercentOfPrize: share,
		Notable: !net.LessThan(c.thresholds.RewardExceedsAmount) ||
			!share.LessThan(c.thresholds.RewardExceedsPercentOfPrize),
	}, nil
}

// Rewards ranges over voters and yields one record per voter. The first error,
// from the voter stream or from Next, is yielded and ends the sequence without
// reading further voters.
func (c *Calculator) Rewards(voters iter.Seq2[account.Voter, error]) iter.Seq2[RewardRecord, error] {
	return func(yield func(RewardRecord, error) bool) {
		for v, err := range voters {
			if err != nil {
				yield(RewardRecord{}, err)
				return
			}
			rec, err := c.Next(v)
			if err != nil {
				yield(RewardRecord{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// CumulativeGross is the sum of gross rewards computed so far.
func (c *Calculator) CumulativeGross() currency.Amount {
	return c.cumulative
}

// Processed is the number of voters read so far.
func (c *Calculator) Processed() int {
	return c.processed
}

// grossReward returns round-half-up(stake * prize / totalVotes). The product
// is computed in 256 bits so no precision is lost for any int64 inputs.
func grossReward(stake, totalVotes, prize currency.Amount) currency.Amount {
	num := new(uint256.Int).Mul(
		uint256.NewInt(uint64(stake.Stroops())),
		uint256.NewInt(uint64(prize.Stroops())),
	)
	den := uint256.NewInt(uint64(totalVotes.Stroops()))
	half := new(uint256.Int).Rsh(den, 1)
	num.Add(num, half)
	q := new(uint256.Int).Div(num, den)
	// stake <= totalVotes, so q <= prize and fits in int64.
	return currency.MustNew(int64(q.Uint64()))
}

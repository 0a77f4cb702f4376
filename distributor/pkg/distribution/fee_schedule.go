package distribution

import (
	"fmt"

	"github.com/google/btree"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
)

// FeeScheduleEntry charges Fee to every voter whose stake is at least
// Threshold, unless a higher threshold also applies.
type FeeScheduleEntry struct {
	Threshold currency.Amount
	Fee       currency.Percent
}

// FeeSchedule is a read-only set of fee tiers ordered by threshold.
type FeeSchedule struct {
	tiers *btree.BTreeG[FeeScheduleEntry]
}

func lessThreshold(a, b FeeScheduleEntry) bool {
	return a.Threshold.LessThan(b.Threshold)
}

// NewFeeSchedule builds a schedule from entries in any order. Two entries
// with the same threshold are rejected.
func NewFeeSchedule(entries ...FeeScheduleEntry) (*FeeSchedule, error) {
	tiers := btree.NewG(4, lessThreshold)
	for _, e := range entries {
		if _, replaced := tiers.ReplaceOrInsert(e); replaced {
			return nil, &ConfigurationError{
				Field:  "feeSchedule",
				Reason: fmt.Sprintf("- Duplicate threshold %s.", e.Threshold),
			}
		}
	}
	return &FeeSchedule{tiers: tiers}, nil
}

// Resolve returns the fee of the highest threshold that does not exceed stake.
func (s *FeeSchedule) Resolve(stake currency.Amount) (currency.Percent, error) {
	var (
		fee   currency.Percent
		found bool
	)
	if s != nil && s.tiers != nil {
		s.tiers.DescendLessOrEqual(FeeScheduleEntry{Threshold: stake}, func(e FeeScheduleEntry) bool {
			fee, found = e.Fee, true
			return false
		})
	}
	if !found {
		return currency.Percent{}, &ConfigurationError{
			Field:  "feeSchedule",
			Reason: fmt.Sprintf("- No suitable descriptor found for %s.", stake),
		}
	}
	return fee, nil
}

// Entries returns the tiers in ascending threshold order.
func (s *FeeSchedule) Entries() []FeeScheduleEntry {
	if s == nil || s.tiers == nil {
		return nil
	}
	out := make([]FeeScheduleEntry, 0, s.tiers.Len())
	s.tiers.Ascend(func(e FeeScheduleEntry) bool {
		out = append(out, e)
		return true
	})
	return out
}

func (s *FeeSchedule) Len() int {
	if s == nil || s.tiers == nil {
		return 0
	}
	return s.tiers.Len()
}

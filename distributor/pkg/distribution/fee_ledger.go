package distribution

import (
	"fmt"

	"github.com/google/btree"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
)

// FeeTier aggregates every fee charged at one rate.
type FeeTier struct {
	Fee   currency.Percent `json:"fee"`
	Count int              `json:"count"`
	Total currency.Amount  `json:"total"`
}

// FeeLedger tracks collected fees per rate for one run.
type FeeLedger struct {
	tiers *btree.BTreeG[*FeeTier]
}

func NewFeeLedger() *FeeLedger {
	return &FeeLedger{
		tiers: btree.NewG(4, func(a, b *FeeTier) bool { return a.Fee.LessThan(b.Fee) }),
	}
}

// Record adds one charged fee to the tier of its rate.
func (l *FeeLedger) Record(fee currency.Percent, amount currency.Amount) error {
	tier, ok := l.tiers.Get(&FeeTier{Fee: fee})
	if !ok {
		tier = &FeeTier{Fee: fee}
		l.tiers.ReplaceOrInsert(tier)
	}
	total, err := tier.Total.Add(amount)
	if err != nil {
		return fmt.Errorf("failed to record %s fee: %w", fee, err)
	}
	tier.Total = total
	tier.Count++
	return nil
}

// Tiers returns a copy of every tier in ascending fee order.
func (l *FeeLedger) Tiers() []FeeTier {
	out := make([]FeeTier, 0, l.tiers.Len())
	l.tiers.Ascend(func(t *FeeTier) bool {
		out = append(out, *t)
		return true
	})
	return out
}

// TotalFees sums every tier.
func (l *FeeLedger) TotalFees() (currency.Amount, error) {
	total := currency.Zero
	var err error
	l.tiers.Ascend(func(t *FeeTier) bool {
		total, err = total.Add(t.Total)
		return err == nil
	})
	if err != nil {
		return currency.Zero, fmt.Errorf("failed to total fees: %w", err)
	}
	return total, nil
}

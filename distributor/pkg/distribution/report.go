package distribution

import (
	"fmt"
	"io"
	"strings"
)

const headerWidth = 72

// Header renders a section title padded with '=' to roughly 72 columns.
func Header(title string) string {
	bar := strings.Repeat("=", max(headerWidth-len(title), 0)/2)
	return bar + "[ " + title + " ]" + bar
}

// Report writes the human-readable account of a run. Write errors are kept
// and returned by Err; later writes are skipped.
type Report struct {
	w   io.Writer
	err error
}

func NewReport(w io.Writer) *Report {
	if w == nil {
		w = io.Discard
	}
	return &Report{w: w}
}

func (r *Report) Header(title string) {
	r.Printf("%s", Header(title))
}

func (r *Report) Printf(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format+"\n", args...)
}

func (r *Report) Err() error {
	return r.err
}

// FeeTiers prints one line per fee rate.
func (r *Report) FeeTiers(tiers []FeeTier) {
	for _, t := range tiers {
		r.Printf("  %s fee was paid by %d accounts, who generated %s", t.Fee, t.Count, t.Total)
	}
}

// Summary prints the closing section of a run.
func (r *Report) Summary(s Summary) {
	r.Header("Summary")
	r.Printf("Total amount of actual rewards given is %s", s.TotalActualRewards)
	r.Printf("%sSum of all rewards plus fees is %s the prize by %s",
		attention(s.RewardsAttention), s.RewardsVsPrize.Relation, s.RewardsVsPrize.Delta)
	r.Printf("%sRecalculated total amount of fees is %s itself by %s",
		attention(!s.FeesReconciled), s.FeesVsRecalculated.Relation, s.FeesVsRecalculated.Delta)
	if s.SkippedPayments > 0 {
		r.Printf("Attention! %d zero-amount payments were skipped", s.SkippedPayments)
	}
	if len(s.FailedBatches) > 0 {
		r.Printf("Attention! %d of %d transactions failed", len(s.FailedBatches), s.Batches)
	}
}

func attention(flag bool) string {
	if flag {
		return "Attention! "
	}
	return ""
}

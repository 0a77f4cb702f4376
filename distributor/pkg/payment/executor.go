package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/metrics"
)

// Submitter sends one batch to the ledger. index is the 1-based position of
// the batch in the run.
type Submitter interface {
	Submit(ctx context.Context, index int, batch Batch) error
}

// TransactionRejectedError reports a batch the ledger did not accept. Later
// batches are still submitted.
type TransactionRejectedError struct {
	Index  int
	Reason string
	Err    error
}

func (e *TransactionRejectedError) Error() string {
	if e.Reason == "" && e.Err != nil {
		return fmt.Sprintf("transaction #%d rejected: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("transaction #%d rejected: %s", e.Index, e.Reason)
}

func (e *TransactionRejectedError) Unwrap() error {
	return e.Err
}

// DryRun computes everything but submits nothing.
type DryRun struct {
	log *slog.Logger
}

func NewDryRun(log *slog.Logger) *DryRun {
	return &DryRun{log: log}
}

func (d *DryRun) Submit(ctx context.Context, index int, batch Batch) error {
	total, _ := batch.Total()
	d.log.Debug("payment: dry run, batch not submitted", "index", index, "operations", len(batch.Payments), "total_stroops", total.Stroops())
	return nil
}

func (d *DryRun) DryRun() bool {
	return true
}

// IsDryRun reports whether s only pretends to submit.
func IsDryRun(s Submitter) bool {
	d, ok := s.(interface{ DryRun() bool })
	return ok && d.DryRun()
}

// BatchFailure describes a batch that was not accepted.
type BatchFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ExecutionReport is the outcome of submitting every batch of a run.
type ExecutionReport struct {
	Batches   int
	Submitted int
	Failures  []BatchFailure
}

// BatchResult is passed to the Execute callback after each batch.
type BatchResult struct {
	Index      int
	Operations int
	Err        error
}

// Execute submits batches sequentially in order. A failed batch is recorded
// and the next one is still submitted. When ctx is cancelled the remaining
// batches are recorded as failures without being submitted.
func Execute(ctx context.Context, log *slog.Logger, s Submitter, batches []Batch, onBatch func(BatchResult)) ExecutionReport {
	report := ExecutionReport{Batches: len(batches)}
	okStatus := "ok"
	if IsDryRun(s) {
		okStatus = "dry_run"
	}
	for i, batch := range batches {
		index := i + 1
		var err error
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("not submitted: %w", ctxErr)
		} else {
			start := time.Now()
			err = s.Submit(ctx, index, batch)
			metrics.BatchSubmitDuration.Observe(time.Since(start).Seconds())
		}

		if err != nil {
			metrics.BatchesSubmittedTotal.WithLabelValues("failed").Inc()
			log.Warn("payment: batch failed", "index", index, "operations", len(batch.Payments), "error", err)
			report.Failures = append(report.Failures, BatchFailure{Index: index, Reason: failureReason(err)})
		} else {
			metrics.BatchesSubmittedTotal.WithLabelValues(okStatus).Inc()
			log.Debug("payment: batch submitted", "index", index, "operations", len(batch.Payments))
			report.Submitted++
		}
		if onBatch != nil {
			onBatch(BatchResult{Index: index, Operations: len(batch.Payments), Err: err})
		}
	}
	return report
}

func failureReason(err error) string {
	var rejected *TransactionRejectedError
	if errors.As(err, &rejected) && rejected.Reason != "" {
		return rejected.Reason
	}
	return err.Error()
}

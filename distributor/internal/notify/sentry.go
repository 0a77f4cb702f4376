package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/distribution"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/metrics"
)

const defaultFlushTimeout = 5 * time.Second

type SentryConfig struct {
	Logger      *slog.Logger
	DSN         string
	Environment string
	Release     string

	// BeforeSend lets callers inspect or drop events before they leave.
	BeforeSend func(*sentry.Event, *sentry.EventHint) *sentry.Event
}

func (cfg *SentryConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	return nil
}

// Sentry reports failed, aborted and degraded runs as Sentry events. Clean
// runs produce no event.
type Sentry struct {
	log *slog.Logger
	hub *sentry.Hub
}

func NewSentry(cfg SentryConfig) (*Sentry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sentry config: %w", err)
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		BeforeSend:  cfg.BeforeSend,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}
	return &Sentry{log: cfg.Logger, hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

func (s *Sentry) Notify(ctx context.Context, res *distribution.Result, runErr error) error {
	severity := Classify(res, runErr)
	if severity == SeverityInfo {
		return nil
	}

	var id *sentry.EventID
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("severity", severity.String())
		if res != nil {
			scope.SetTag("outcome", string(res.Outcome))
			scope.SetTag("run_id", res.RunID.String())
			scope.SetContext("run", sentry.Context{
				"prize":       res.Prize.Stroops(),
				"total_votes": res.Network.TotalVotes.Stroops(),
				"started_at":  res.StartedAt,
				"finished_at": res.FinishedAt,
			})
		}
		switch {
		case runErr != nil:
			scope.SetLevel(sentry.LevelError)
			id = s.hub.CaptureException(runErr)
		case res != nil && res.Abort != nil:
			scope.SetLevel(sentry.LevelError)
			id = s.hub.CaptureException(res.Abort)
		default:
			scope.SetLevel(sentry.LevelWarning)
			id = s.hub.CaptureMessage(Title(res, runErr) + "\n" + Text(res, runErr))
		}
	})

	status := "success"
	if id == nil {
		status = "dropped"
	}
	metrics.NotificationsTotal.WithLabelValues("sentry", status).Inc()
	s.log.Debug("notify: captured sentry event", "severity", severity, "status", status)
	return nil
}

// Flush waits for buffered events to be delivered.
func (s *Sentry) Flush(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = defaultFlushTimeout
	}
	return s.hub.Flush(timeout)
}

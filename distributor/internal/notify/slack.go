package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/slack-go/slack"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/distribution"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/metrics"
	"github.com/Stellar-Pool/stellar-pool-service/utils/pkg/retry"
)

var severityColors = map[Severity]string{
	SeverityInfo:    "good",
	SeverityWarning: "warning",
	SeverityError:   "danger",
}

type SlackConfig struct {
	Logger     *slog.Logger
	WebhookURL string
	Retry      retry.Config
}

func (cfg *SlackConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	u, err := url.Parse(cfg.WebhookURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("webhook url must be an absolute URL")
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return nil
}

// Slack posts run notifications to an incoming webhook.
type Slack struct {
	log *slog.Logger
	cfg SlackConfig
}

func NewSlack(cfg SlackConfig) (*Slack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid slack config: %w", err)
	}
	return &Slack{log: cfg.Logger, cfg: cfg}, nil
}

func (s *Slack) Notify(ctx context.Context, res *distribution.Result, runErr error) error {
	msg := Message(res, runErr)
	err := retry.Do(ctx, s.cfg.Retry, func() error {
		return slack.PostWebhookContext(ctx, s.cfg.WebhookURL, msg)
	})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("slack", "error").Inc()
		return fmt.Errorf("failed to post slack notification: %w", err)
	}
	metrics.NotificationsTotal.WithLabelValues("slack", "success").Inc()
	s.log.Debug("notify: posted slack notification", "severity", Classify(res, runErr))
	return nil
}

// Message builds the webhook payload for a run.
func Message(res *distribution.Result, runErr error) *slack.WebhookMessage {
	severity := Classify(res, runErr)
	title := Title(res, runErr)
	attachment := slack.Attachment{
		Color:    severityColors[severity],
		Title:    title,
		Text:     "```" + Text(res, runErr) + "```",
		Fallback: title,
	}
	if res != nil {
		attachment.Fields = []slack.AttachmentField{
			{Title: "Outcome", Value: string(res.Outcome), Short: true},
			{Title: "Prize", Value: res.Prize.String(), Short: true},
		}
		if res.Summary != nil {
			mode := "dry run"
			if res.Summary.Executed {
				mode = "executed"
			}
			attachment.Fields = append(attachment.Fields, slack.AttachmentField{Title: "Mode", Value: mode, Short: true})
		}
	}
	return &slack.WebhookMessage{
		Text:        title,
		Attachments: []slack.Attachment{attachment},
	}
}

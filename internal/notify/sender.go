package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/timesheet/internal/logger"
)

// WebhookConfig configures WebhookSender.
type WebhookConfig struct {
	URL        string
	RetryCount int
	RetryWait  time.Duration
	Timeout    time.Duration
}

// WebhookSender posts intents as JSON to a single endpoint.
type WebhookSender struct {
	client *resty.Client
	url    string
}

// NewWebhookSender creates a sender that retries on transport errors and 5xx responses.
func NewWebhookSender(cfg WebhookConfig) *WebhookSender {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	client.SetRetryCount(cfg.RetryCount)
	if cfg.RetryWait > 0 {
		client.SetRetryWaitTime(cfg.RetryWait)
		client.SetRetryMaxWaitTime(4 * cfg.RetryWait)
	}
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= 500
	})

	return &WebhookSender{client: client, url: cfg.URL}
}

// Send posts in and fails on any non-2xx response.
func (s *WebhookSender) Send(ctx context.Context, in Intent) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(in).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("failed to post notification: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("notification webhook returned HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

// LogSender writes intents to the log. It is used when no webhook is configured.
type LogSender struct{}

// Send logs in.
func (LogSender) Send(ctx context.Context, in Intent) error {
	logger.With(logger.Fields{
		"kind":             in.Kind,
		"employee_id":      in.EmployeeID,
		"entry_ids":        in.EntryIDs,
		logger.FieldTaskID: in.TaskID,
	}).Info(ctx, "Notification: %s for task %q", in.Kind, in.TaskTitle)
	return nil
}

// NewSender returns a WebhookSender when cfg has a URL and a LogSender otherwise.
func NewSender(cfg WebhookConfig) Sender {
	if cfg.URL == "" {
		return LogSender{}
	}
	return NewWebhookSender(cfg)
}

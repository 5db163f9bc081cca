// Package notify provides concrete implementations of the dispatch
// package's PushNotifier collaborator interface. The wire format and
// delivery guarantees of the notification transport are out of scope;
// these adapters exist to exercise the interface, not to define it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/tangiraiC/passl-dispatch/pkg/model"
)

// ErrRateLimited is returned when a notifier drops a call locally because
// it exceeded the configured delivery rate.
var ErrRateLimited = errors.New("notify: rate limit exceeded")

// WebhookNotifier posts offer/revoke events to a single configured
// webhook URL. Delivery is best-effort: a non-2xx response or transport
// error is returned to the caller but never retried here; the dispatch
// loop treats notification failure as non-fatal and discards it (§6.3).
// Calls beyond the configured rate are dropped locally (ErrRateLimited)
// rather than forwarded, protecting the downstream endpoint from a burst
// of simultaneous wave broadcasts.
type WebhookNotifier struct {
	client  *resty.Client
	url     string
	limiter *tokenBucket
}

// NewWebhookNotifier builds a WebhookNotifier posting to url, allowing up
// to 20 requests per second.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return NewWebhookNotifierWithRate(url, 20)
}

// NewWebhookNotifierWithRate is NewWebhookNotifier with an explicit
// requests-per-second cap (a value <= 0 defaults to 20/s).
func NewWebhookNotifierWithRate(url string, maxPerSecond int) *WebhookNotifier {
	client := resty.New().SetRetryCount(0)
	if maxPerSecond <= 0 {
		maxPerSecond = 20
	}
	return &WebhookNotifier{
		client:  client,
		url:     url,
		limiter: newTokenBucket(maxPerSecond, time.Second/time.Duration(maxPerSecond)),
	}
}

type offerPayload struct {
	JobID     string   `json:"job_id"`
	OrderIDs  []string `json:"order_ids"`
	DriverIDs []string `json:"driver_ids"`
	Event     string   `json:"event"`
}

// BroadcastOffer posts an "offer" event naming the job and its candidate
// drivers for the current wave.
func (w *WebhookNotifier) BroadcastOffer(ctx context.Context, driverIDs []string, job model.Job) error {
	if !w.limiter.allow() {
		return fmt.Errorf("notify: broadcast offer for job %s: %w", job.ID, ErrRateLimited)
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(offerPayload{JobID: job.ID, OrderIDs: job.OrderIDs, DriverIDs: driverIDs, Event: "offer"}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("notify: broadcast offer for job %s: %w", job.ID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify: broadcast offer for job %s: webhook returned %s", job.ID, resp.Status())
	}
	return nil
}

// RevokeOffer posts a "revoke" event for drivers whose offer on jobID has
// lapsed, either because another driver won or the wave timed out.
func (w *WebhookNotifier) RevokeOffer(ctx context.Context, driverIDs []string, jobID string) error {
	if !w.limiter.allow() {
		return fmt.Errorf("notify: revoke offer for job %s: %w", jobID, ErrRateLimited)
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(offerPayload{JobID: jobID, DriverIDs: driverIDs, Event: "revoke"}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("notify: revoke offer for job %s: %w", jobID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify: revoke offer for job %s: webhook returned %s", jobID, resp.Status())
	}
	return nil
}

// LoggingNotifier logs broadcast/revoke events instead of delivering
// them anywhere. It is the default PushNotifier for tests and the CSV
// simulation harness, where there is no real driver app to notify.
type LoggingNotifier struct {
	log zerolog.Logger
}

// NewLoggingNotifier builds a LoggingNotifier writing through log.
func NewLoggingNotifier(log zerolog.Logger) *LoggingNotifier {
	return &LoggingNotifier{log: log}
}

// BroadcastOffer logs the offer at debug level and always succeeds.
func (n *LoggingNotifier) BroadcastOffer(ctx context.Context, driverIDs []string, job model.Job) error {
	n.log.Debug().Str("job_id", job.ID).Strs("driver_ids", driverIDs).Msg("wave offer broadcast")
	return nil
}

// RevokeOffer logs the revocation at debug level and always succeeds.
func (n *LoggingNotifier) RevokeOffer(ctx context.Context, driverIDs []string, jobID string) error {
	n.log.Debug().Str("job_id", jobID).Strs("driver_ids", driverIDs).Msg("wave offer revoked")
	return nil
}

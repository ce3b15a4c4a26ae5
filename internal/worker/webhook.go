// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/solanagram/solanagram/internal/logger"
)

// WebhookNotifier posts extracted signals to the configured webhook URL.
// Notifications are best-effort: a bounded retry, then the signal is only
// logged. A nil notifier (no URL configured) swallows every call.
type WebhookNotifier struct {
	client *resty.Client
	url    string
	log    *logger.Logger
}

// NewWebhookNotifier builds a notifier, or nil when url is empty.
func NewWebhookNotifier(url string, log *logger.Logger) *WebhookNotifier {
	if url == "" {
		return nil
	}

	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &WebhookNotifier{client: client, url: url, log: log}
}

// SignalPayload is the webhook body for one extraction batch.
type SignalPayload struct {
	ListenerID  int64        `json:"listener_id"`
	ChatID      int64        `json:"chat_id"`
	MessageID   int64        `json:"message_id"`
	MessageText string       `json:"message_text"`
	Extractions []Extraction `json:"extractions"`
	SentAt      time.Time    `json:"sent_at"`
}

// Notify posts one payload. Errors are logged, never propagated: webhook
// delivery must not stall message capture.
func (n *WebhookNotifier) Notify(ctx context.Context, payload SignalPayload) {
	if n == nil {
		return
	}

	payload.SentAt = time.Now()

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(n.url)
	if err != nil {
		n.log.Warn().Err(err).Int64("message_id", payload.MessageID).Msg("webhook delivery failed")
		return
	}
	if resp.IsError() {
		n.log.Warn().Err(fmt.Errorf("webhook status %d", resp.StatusCode())).
			Int64("message_id", payload.MessageID).Msg("webhook rejected")
	}
}

package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"campus-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// notifyRetryIntervals spaces out redelivery attempts after a failed push.
var notifyRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// notificationPayload is the JSON structure pushed to the campus webhook.
type notificationPayload struct {
	EventType string                  `json:"event_type"`
	Data      notificationPayloadData `json:"data"`
	Signature string                  `json:"signature"`
}

type notificationPayloadData struct {
	Reference  string `json:"reference"`
	UserID     string `json:"user_id,omitempty"`
	MerchantID string `json:"merchant_id,omitempty"`
	Amount     string `json:"amount"`
	Fee        string `json:"fee"`
	OccurredAt int64  `json:"occurred_at"`
}

// WebhookNotifier pushes ledger events to a configured campus endpoint.
// Delivery is best-effort and asynchronous; a dead endpoint never blocks or
// fails the transaction that produced the event.
type WebhookNotifier struct {
	url        string
	secret     string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier. An empty URL yields a
// notifier that drops every event.
func NewWebhookNotifier(url, secret string, httpClient HTTPClient, log zerolog.Logger) *WebhookNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{
		url:        url,
		secret:     secret,
		httpClient: httpClient,
		log:        log,
	}
}

// Publish signs the event and fires delivery in the background.
func (n *WebhookNotifier) Publish(_ context.Context, event domain.Event) error {
	if n.url == "" {
		return nil
	}

	data := notificationPayloadData{
		Reference:  event.Reference,
		Amount:     event.Amount.String(),
		Fee:        event.Fee.String(),
		OccurredAt: event.OccurredAt.Unix(),
	}
	if event.UserID != uuid.Nil {
		data.UserID = event.UserID.String()
	}
	if event.MerchantID != uuid.Nil {
		data.MerchantID = event.MerchantID.String()
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return err
	}

	payload := notificationPayload{
		EventType: string(event.Type),
		Data:      data,
		Signature: n.sign(dataBytes),
	}

	go n.deliverWithRetries(payload, event.Reference)
	return nil
}

func (n *WebhookNotifier) sign(data []byte) string {
	mac := hmac.New(sha256.New, []byte(n.secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// deliverWithRetries attempts delivery, sleeping between attempts.
func (n *WebhookNotifier) deliverWithRetries(payload notificationPayload, reference string) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		n.log.Error().Err(err).Str("reference", reference).Msg("notify: failed to marshal payload")
		return
	}

	for attempt := 0; attempt <= len(notifyRetryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(notifyRetryIntervals[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(payloadBytes))
		if err != nil {
			n.log.Error().Err(err).Str("reference", reference).Int("attempt", attempt+1).Msg("notify: failed to create request")
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			n.log.Warn().Err(err).Str("reference", reference).Int("attempt", attempt+1).Msg("notify: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			n.log.Info().Str("reference", reference).Int("attempt", attempt+1).Msg("notify: delivered")
			return
		}

		n.log.Warn().Str("reference", reference).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("notify: non-2xx response, retrying")
	}

	n.log.Error().Str("reference", reference).Msg("notify: all retry attempts exhausted")
}

// NopNotifier discards every event. Used when no webhook URL is configured
// and in tests that don't care about notifications.
type NopNotifier struct{}

// Publish implements ports.NotificationSink.
func (NopNotifier) Publish(context.Context, domain.Event) error { return nil }

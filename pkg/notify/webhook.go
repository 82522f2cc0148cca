package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// EventExportFinished is the event name carried by every webhook delivery.
const EventExportFinished = "export_finished"

// Webhook delivery headers.
const (
	HeaderEvent     = "X-Gdl-Event"
	HeaderDelivery  = "X-Gdl-Delivery"
	HeaderSignature = "X-Signature-256"
)

// WebhookNotifier posts summaries to a generic HTTP webhook.
type WebhookNotifier struct {
	url    string
	secret []byte
	client *http.Client
}

// NewWebhookNotifier creates a generic webhook notifier.
// If secret is non-empty, the body is signed with HMAC-SHA256.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: []byte(secret),
		client: defaultHTTPClient(),
	}
}

// WithHTTPClient replaces the client used for deliveries.
func (w *WebhookNotifier) WithHTTPClient(c *http.Client) *WebhookNotifier {
	w.client = c
	return w
}

func (w *WebhookNotifier) Name() string { return "webhook" }

// Send delivers one summary. Each delivery carries a fresh ID so receivers
// can drop duplicates.
func (w *WebhookNotifier) Send(ctx context.Context, summary Summary) error {
	delivery := webhookPayload{
		ID:        uuid.NewString(),
		Event:     EventExportFinished,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Summary:   summary,
	}

	body, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	header := http.Header{}
	header.Set(HeaderEvent, delivery.Event)
	header.Set(HeaderDelivery, delivery.ID)
	if len(w.secret) > 0 {
		header.Set(HeaderSignature, "sha256="+Sign(body, w.secret))
	}

	if err := postJSON(ctx, w.client, w.url, body, header); err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	return nil
}

type webhookPayload struct {
	ID        string  `json:"id"`
	Event     string  `json:"event"`
	Timestamp string  `json:"timestamp"`
	Summary   Summary `json:"summary"`
}

// Sign returns the hex HMAC-SHA256 of message under key.
func Sign(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"attendbot/internal/service"
)

// Webhook delivers reminders to the chat transport, which owns message
// wording, translation and actual delivery to the user.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook returns a webhook notifier posting to the given URL.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type payload struct {
	UserID int64  `json:"user_id"`
	Kind   string `json:"kind"`
}

// Notify posts the reminder to the transport webhook.
func (w *Webhook) Notify(ctx context.Context, userID int64, kind service.ReminderKind) error {
	body, err := json.Marshal(payload{UserID: userID, Kind: string(kind)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned %d", resp.StatusCode)
	}
	return nil
}

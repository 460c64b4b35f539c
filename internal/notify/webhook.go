package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"alertpulse/internal/engine"
)

// WebhookNotifier POSTs the notification as JSON to every webhook target.
// Non-2xx responses count as delivery failures.
type WebhookNotifier struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewWebhookNotifier(timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, n engine.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	var errs []error
	for _, target := range n.Targets {
		if target.Kind != "webhook" {
			continue
		}
		if err := w.post(ctx, target.Address, body); err != nil {
			errs = append(errs, fmt.Errorf("webhook %s: %w", target.Address, err))
		}
	}
	return errors.Join(errs...)
}

func (w *WebhookNotifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

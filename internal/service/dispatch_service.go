package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/maheshrc27/social-scheduler/internal/models"
	"github.com/maheshrc27/social-scheduler/internal/transfer"
)

// Dispatcher hands a claimed post to the external publishing workflow.
// A nil error means the workflow accepted the post, not that it was published.
type Dispatcher interface {
	Dispatch(ctx context.Context, post *models.Post) error
}

const maxErrorBody = 512

var ErrDispatchNotConfigured = errors.New("dispatch webhook url is not configured")

type WebhookDispatcher struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookDispatcher posts dispatch payloads to url. The caller bounds each
// call through the context; client defaults to http.DefaultClient.
func NewWebhookDispatcher(url, secret string, client *http.Client) *WebhookDispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookDispatcher{url: strings.TrimSpace(url), secret: secret, client: client}
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, post *models.Post) error {
	if d.url == "" {
		return ErrDispatchNotConfigured
	}

	body, err := json.Marshal(transfer.NewDispatchPayload(post))
	if err != nil {
		return fmt.Errorf("error encoding dispatch payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.secret != "" {
		req.Header.Set("X-Webhook-Secret", d.secret)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook failed: %d %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Package pushgw is a client for the mobile push gateway. Delivery is
// best-effort: callers treat every failure as log-and-continue.
package pushgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 5 * time.Second

// Client posts push messages to the gateway as a single JSON batch.
type Client struct {
	url    string
	apiKey string
	client *http.Client
}

// New creates a push gateway client. A zero timeout uses the default.
func New(url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// pushMessage is the wire format of one outbound push.
type pushMessage struct {
	Recipients []string `json:"recipients"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	DedupeKey  string   `json:"dedupe_key,omitempty"`
}

// Push sends one message to a set of recipients. At-most-once per call; the
// dedupe key lets the gateway drop repeats from retried transitions.
func (c *Client) Push(ctx context.Context, recipientIDs []string, title, message, dedupeKey string) error {
	if len(recipientIDs) == 0 {
		return nil
	}

	body, err := json.Marshal(pushMessage{
		Recipients: recipientIDs,
		Title:      title,
		Body:       message,
		DedupeKey:  dedupeKey,
	})
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}
	return nil
}

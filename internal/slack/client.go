package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sigmundftw/educabot/internal/dialog"
)

const DefaultAPIURL = "https://slack.com/api/"

// APIError is a call the platform refused.
type APIError struct {
	Method string
	Status int
	Code   string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("slack %s: http %d", e.Method, e.Status)
	}
	return fmt.Sprintf("slack %s: %s", e.Method, e.Code)
}

// Client calls the platform web API with a bot token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, token: token, http: httpClient}
}

// OpenDialog shows d to the user behind triggerID.
func (c *Client) OpenDialog(ctx context.Context, triggerID string, d dialog.Dialog) error {
	return c.call(ctx, "dialog.open", map[string]any{
		"trigger_id": triggerID,
		"dialog":     d,
	})
}

// PostMessage posts msg to a channel.
func (c *Client) PostMessage(ctx context.Context, channelID string, msg Message) error {
	body := map[string]any{
		"channel": channelID,
		"text":    msg.Text,
	}
	if len(msg.Blocks) > 0 {
		body["blocks"] = msg.Blocks
	}
	return c.call(ctx, "chat.postMessage", body)
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &APIError{Method: method, Status: resp.StatusCode}
	}

	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !result.OK {
		return &APIError{Method: method, Status: resp.StatusCode, Code: result.Error}
	}
	return nil
}

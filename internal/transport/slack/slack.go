// Package slack posts subscriber notifications to Slack workspaces.
//
// Two credential kinds are supported:
//   - a bot token (provider "slack"), posting via chat.postMessage to a channel ID;
//   - an incoming webhook URL (provider "slack-webhook"); the destination is informational.
package slack

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"schnitzelbot/internal/transport"
)

var defaultHTTP = &http.Client{Timeout: 15 * time.Second}

// Client posts through the Web API with one workspace's bot token.
type Client struct {
	api *slack.Client
}

func New(token string) (transport.Client, error) {
	return NewWithOptions(token)
}

// NewWithOptions exposes slack-go options (API URL, HTTP client) for tests.
func NewWithOptions(token string, opts ...slack.Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("slack token is empty")
	}
	opts = append([]slack.Option{slack.OptionHTTPClient(defaultHTTP)}, opts...)
	return &Client{api: slack.New(token, opts...)}, nil
}

func (c *Client) PostText(ctx context.Context, destination, text string) error {
	channel := strings.TrimSpace(destination)
	if channel == "" {
		return fmt.Errorf("slack: channel id is empty")
	}
	if _, _, err := c.api.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("slack post to %s: %w", channel, err)
	}
	return nil
}

// Webhook posts to one incoming webhook URL.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string) (transport.Client, error) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return nil, fmt.Errorf("slack webhook: invalid url")
	}
	return &Webhook{url: url, client: defaultHTTP}, nil
}

func (w *Webhook) PostText(ctx context.Context, _ string, text string) error {
	if err := slack.PostWebhookCustomHTTPContext(ctx, w.url, w.client, &slack.WebhookMessage{Text: text}); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

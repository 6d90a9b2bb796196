package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/whale-tracker/internal/types"
)

// NotificationChannel delivers one rendered alert message to a webhook
type NotificationChannel interface {
	Type() types.ChannelType
	Send(ctx context.Context, webhookURL, message string) error
}

// DefaultChannels returns the channel set the engine dispatches to
func DefaultChannels(client *http.Client) map[types.ChannelType]NotificationChannel {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return map[types.ChannelType]NotificationChannel{
		types.ChannelDiscord:  &DiscordChannel{client: client},
		types.ChannelSlack:    &SlackChannel{client: client},
		types.ChannelTelegram: &UnimplementedChannel{channel: types.ChannelTelegram},
		types.ChannelEmail:    &UnimplementedChannel{channel: types.ChannelEmail},
	}
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// DiscordChannel posts alerts to a Discord webhook
type DiscordChannel struct {
	client *http.Client
}

// Type returns the channel identifier
func (d *DiscordChannel) Type() types.ChannelType { return types.ChannelDiscord }

// Send posts the message to the Discord webhook
func (d *DiscordChannel) Send(ctx context.Context, webhookURL, message string) error {
	if webhookURL == "" {
		return fmt.Errorf("discord channel requires a webhook URL")
	}
	return postJSON(ctx, d.client, webhookURL, map[string]string{
		"content":    message,
		"username":   "Whale Tracker",
		"avatar_url": "https://cryptologos.cc/logos/solana-sol-logo.png",
	})
}

// SlackChannel posts alerts to a Slack incoming webhook
type SlackChannel struct {
	client *http.Client
}

// Type returns the channel identifier
func (s *SlackChannel) Type() types.ChannelType { return types.ChannelSlack }

// Send posts the message to the Slack webhook
func (s *SlackChannel) Send(ctx context.Context, webhookURL, message string) error {
	if webhookURL == "" {
		return fmt.Errorf("slack channel requires a webhook URL")
	}
	return postJSON(ctx, s.client, webhookURL, map[string]string{
		"text":       message,
		"username":   "Whale Tracker",
		"icon_emoji": ":whale:",
	})
}

// UnimplementedChannel is a recognized channel without a delivery backend.
// It fails fast so the accounting records the attempt.
type UnimplementedChannel struct {
	channel types.ChannelType
}

// Type returns the channel identifier
func (u *UnimplementedChannel) Type() types.ChannelType { return u.channel }

// Send always fails with a not-implemented error
func (u *UnimplementedChannel) Send(ctx context.Context, webhookURL, message string) error {
	return fmt.Errorf("%s notifications not implemented", u.channel)
}

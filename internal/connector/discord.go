// Package connector sends bot notifications to external services.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/growbot-project/growbot/internal/config"
	"github.com/growbot-project/growbot/internal/events"
)

// repeatWindow suppresses identical notifications sent in quick succession.
const repeatWindow = 5 * time.Minute

// DiscordConnector posts bot notifications to a Discord webhook.
type DiscordConnector struct {
	mu sync.Mutex

	cfg    *config.Config
	client *http.Client
	now    func() time.Time

	// Last send time per title+message
	recent map[string]time.Time
}

// NewDiscordConnector creates a Discord connector and subscribes it to the
// events it reports.
func NewDiscordConnector(cfg *config.Config, eventBus *events.EventBus) *DiscordConnector {
	dc := &DiscordConnector{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
		recent: make(map[string]time.Time),
	}

	eventBus.Subscribe(events.EventNotifyDiscordAdmin, "discord.notify", dc.onNotifyAdmin)
	eventBus.Subscribe(events.EventBanned, "discord.banned", dc.onBanned)
	eventBus.Subscribe(events.EventLogonFailed, "discord.logonFailed", dc.onLogonFailed)
	eventBus.Subscribe(events.EventHealthAlert, "discord.healthAlert", dc.onHealthAlert)

	return dc
}

// SendAdminNotification sends a notification to the configured webhook.
// Repeats of the same notification within a few minutes are dropped.
func (dc *DiscordConnector) SendAdminNotification(ctx context.Context, title, message, level string) error {
	discordCfg := dc.cfg.GetApplicationData().Discord
	if discordCfg.WebhookURL == "" {
		log.Debug().Str("title", title).Msg("no Discord webhook configured")
		return nil
	}

	if !dc.shouldSend(title + "\x00" + message) {
		log.Debug().Str("title", title).Msg("suppressing repeated Discord notification")
		return nil
	}

	return dc.sendWebhook(ctx, discordCfg.WebhookURL, discordCfg.OwnerID, title, message, level)
}

func (dc *DiscordConnector) shouldSend(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	now := dc.now()
	if last, ok := dc.recent[key]; ok && now.Sub(last) < repeatWindow {
		return false
	}
	dc.recent[key] = now

	for k, t := range dc.recent {
		if now.Sub(t) >= repeatWindow {
			delete(dc.recent, k)
		}
	}
	return true
}

// sendWebhook sends a notification via Discord webhook.
func (dc *DiscordConnector) sendWebhook(ctx context.Context, webhookURL, ownerID, title, message, level string) error {
	var color int
	switch level {
	case "error":
		color = 0xFF0000 // Red
	case "warning":
		color = 0xFFAA00 // Orange
	default:
		color = 0x00FF00 // Green
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": message,
				"color":       color,
				"timestamp":   dc.now().UTC().Format(time.RFC3339),
				"footer": map[string]string{
					"text": "growbot",
				},
			},
		},
	}
	if ownerID != "" {
		payload["content"] = fmt.Sprintf("<@%s>", ownerID)
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := dc.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	log.Debug().Str("title", title).Msg("Discord webhook notification sent")
	return nil
}

// onNotifyAdmin handles EventNotifyDiscordAdmin events.
func (dc *DiscordConnector) onNotifyAdmin(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NotifyDiscordPayload)
	if !ok {
		return nil
	}
	return dc.SendAdminNotification(ctx, payload.Title, payload.Message, payload.Level)
}

func (dc *DiscordConnector) onBanned(ctx context.Context, event events.Event) error {
	if !dc.cfg.GetApplicationData().Discord.NotifyOnBan {
		return nil
	}
	payload, _ := event.Payload.(events.BannedPayload)
	return dc.SendAdminNotification(ctx,
		fmt.Sprintf("Bot %s banned", event.Source),
		payload.Message, "error")
}

func (dc *DiscordConnector) onLogonFailed(ctx context.Context, event events.Event) error {
	if !dc.cfg.GetApplicationData().Discord.NotifyOnLogonFail {
		return nil
	}
	payload, _ := event.Payload.(events.LogonFailedPayload)
	return dc.SendAdminNotification(ctx,
		fmt.Sprintf("Bot %s login rejected", event.Source),
		payload.Message, "warning")
}

func (dc *DiscordConnector) onHealthAlert(ctx context.Context, event events.Event) error {
	if !dc.cfg.GetApplicationData().Discord.NotifyOnHealthAlert {
		return nil
	}
	payload, ok := event.Payload.(events.HealthAlertPayload)
	if !ok {
		return nil
	}
	title := "Health check failed: " + payload.Check
	if payload.Bot != "" {
		title += " (" + payload.Bot + ")"
	}
	return dc.SendAdminNotification(ctx, title, payload.Message, "warning")
}

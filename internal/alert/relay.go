// Package alert relays Prometheus Alertmanager webhook payloads to a
// Telegram chat.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"

	"github.com/nervosnetwork/nervos-bot/internal/telegram"
)

// Relay formats incoming alerts and forwards them to one chat.
type Relay struct {
	sender telegram.Sender
	chatID int64
	logger *slog.Logger
}

// New creates a Relay targeting chatID.
func New(sender telegram.Sender, chatID int64, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{sender: sender, chatID: chatID, logger: logger}
}

// payload is the subset of the Alertmanager webhook format we read.
type payload struct {
	Alerts []alertEntry `json:"alerts"`
}

type alertEntry struct {
	Status      string            `json:"status"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
}

// HandleWebhook sends one message per alert in the delivery. A send
// failure aborts the remaining alerts of that delivery; Alertmanager
// re-notifies on its own schedule.
func (r *Relay) HandleWebhook(ctx context.Context, body []byte) error {
	if r.chatID == 0 {
		r.logger.Debug("alert: no chat configured, dropping delivery")
		return nil
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("alert: parsing webhook payload: %w", err)
	}

	for _, entry := range p.Alerts {
		if err := r.sender.SendMessage(ctx, r.chatID, formatAlert(entry)); err != nil {
			return fmt.Errorf("alert: relaying %q: %w", entry.Labels["alertname"], err)
		}
	}
	return nil
}

func formatAlert(entry alertEntry) string {
	keys := make([]string, 0, len(entry.Labels))
	for k := range entry.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	labels := make([]string, 0, len(keys))
	for _, k := range keys {
		labels = append(labels, fmt.Sprintf("%s=%s", html.EscapeString(k), html.EscapeString(entry.Labels[k])))
	}

	return fmt.Sprintf("<b>%s</b>: %s\n\n%s",
		html.EscapeString(entry.Status),
		html.EscapeString(entry.Annotations["summary"]),
		strings.Join(labels, "\n"))
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/bftp/pkg/logger"
	"github.com/skalibog/bftp/pkg/models"
)

// Цвета embed для сторон сделки
const (
	colorLong  = 3066993
	colorShort = 15158332
)

// DiscordNotifier отправляет уведомления в Discord через webhook
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier создает нотификатор Discord.
// Пустой URL допустим: события уходят только в лог.
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title  string         `json:"title,omitempty"`
	Color  int            `json:"color,omitempty"`
	Fields []discordField `json:"fields,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

// Notify доставляет событие в Discord
func (n *DiscordNotifier) Notify(ctx context.Context, event Event) error {
	if n.webhookURL == "" {
		logger.Info("Webhook не настроен, уведомление только в лог",
			zap.String("title", event.Title),
			zap.String("message", event.Message))
		return nil
	}

	payload := buildPayload(event)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации уведомления: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки в Discord: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("Discord вернул статус %d", resp.StatusCode)
	}
	return nil
}

// buildPayload собирает полезную нагрузку: с полями уходит embed,
// без полей достаточно обычного сообщения
func buildPayload(event Event) discordPayload {
	if len(event.Fields) == 0 {
		content := event.Message
		if event.Title != "" {
			content = fmt.Sprintf("**%s**\n%s", event.Title, event.Message)
		}
		return discordPayload{Content: content}
	}

	color := colorLong
	if event.Side == models.SideShort {
		color = colorShort
	}

	fields := make([]discordField, len(event.Fields))
	for i, f := range event.Fields {
		fields[i] = discordField{Name: f.Name, Value: f.Value, Inline: true}
	}

	return discordPayload{
		Content: event.Message,
		Embeds: []discordEmbed{{
			Title:  event.Title,
			Color:  color,
			Fields: fields,
		}},
	}
}

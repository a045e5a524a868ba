package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier отправляет уведомления в Telegram
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier создает нотификатор Telegram
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram-бота: %w", err)
	}

	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
	}, nil
}

// Notify доставляет событие в чат
func (n *TelegramNotifier) Notify(ctx context.Context, event Event) error {
	var b strings.Builder
	if event.Title != "" {
		b.WriteString(event.Title)
		b.WriteString("\n")
	}
	b.WriteString(event.Message)
	for _, f := range event.Fields {
		b.WriteString(fmt.Sprintf("\n%s: %s", f.Name, f.Value))
	}

	msg := tgbotapi.NewMessage(n.chatID, b.String())
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки в Telegram: %w", err)
	}
	return nil
}

// Package notify доставляет уведомления о сигналах и сделках.
// Доставка работает по принципу "выстрелил и забыл": сбой уведомления
// логируется и никогда не возвращается в цикл сканирования.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/skalibog/bftp/pkg/logger"
	"github.com/skalibog/bftp/pkg/models"
)

// Field дополнительное поле уведомления
type Field struct {
	Name  string
	Value string
}

// Event событие для доставки
type Event struct {
	Title   string
	Message string
	Symbol  string
	Side    models.Side
	Fields  []Field
}

// Notifier интерфейс доставки уведомлений
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Multi рассылает событие во все каналы. Ошибки отдельных каналов
// логируются и не прерывают остальные.
type Multi struct {
	targets []Notifier
}

// NewMulti создает составной нотификатор
func NewMulti(targets ...Notifier) *Multi {
	return &Multi{targets: targets}
}

// Notify доставляет событие во все каналы
func (m *Multi) Notify(ctx context.Context, event Event) error {
	for _, target := range m.targets {
		if err := target.Notify(ctx, event); err != nil {
			logger.Warn("Ошибка доставки уведомления",
				zap.String("title", event.Title),
				zap.Error(err))
		}
	}
	return nil
}

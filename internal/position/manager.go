// Package position исполняет одобренные планы сделок через шлюз биржи.
package position

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/skalibog/bftp/internal/exchange"
	"github.com/skalibog/bftp/internal/notify"
	"github.com/skalibog/bftp/pkg/logger"
	"github.com/skalibog/bftp/pkg/models"
)

// ErrRejected план не прошел валидацию. Это не сбой расчета, а штатный
// вердикт, который путь исполнения обязан уважать.
var ErrRejected = errors.New("план сделки отклонен валидатором")

// Gateway шлюз исполнения ордеров на бирже
type Gateway interface {
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*models.Order, error)
	GetOpenPositions(ctx context.Context) ([]*models.Position, error)
}

// Manager управляет исполнением планов сделок
type Manager struct {
	gateway  Gateway
	notifier notify.Notifier
}

// NewManager создает менеджер позиций. Нотификатор может быть nil.
func NewManager(gateway Gateway, notifier notify.Notifier) *Manager {
	return &Manager{
		gateway:  gateway,
		notifier: notifier,
	}
}

// ExecuteTrade размещает вход, тейк-профит и стоп-лосс по плану.
// Неодобренный отчет валидации останавливает исполнение до первого ордера.
// Сбой TP или SL не отменяет уже размещенный вход, а фиксируется в логе.
func (m *Manager) ExecuteTrade(ctx context.Context, setup *models.TradeSetupOutput, report *models.ValidationReport) (map[string]*models.Order, error) {
	if report != nil && !report.Approved {
		return nil, fmt.Errorf("%w: %s", ErrRejected, report.Summary)
	}

	entrySide, exitSide := "BUY", "SELL"
	if setup.Side == models.SideShort {
		entrySide, exitSide = "SELL", "BUY"
	}

	// Плечо выставляется до входа, сбой не блокирует исполнение
	if err := m.gateway.SetLeverage(ctx, setup.Symbol, setup.Leverage); err != nil {
		logger.Warn("Не удалось установить плечо", zap.String("symbol", setup.Symbol), zap.Error(err))
	}

	orders := make(map[string]*models.Order)

	entryOrder, err := m.gateway.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:   setup.Symbol,
		Side:     entrySide,
		Type:     "LIMIT",
		Quantity: setup.Quantity,
		Price:    setup.EntryPrice,
	})
	if err != nil {
		m.notifyText(ctx, fmt.Sprintf("❌ Ошибка исполнения: %v", err))
		return nil, fmt.Errorf("ошибка входного ордера: %w", err)
	}
	orders["entry"] = entryOrder

	tpOrder, err := m.gateway.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:     setup.Symbol,
		Side:       exitSide,
		Type:       "LIMIT",
		Quantity:   setup.Quantity,
		Price:      setup.TPPrice,
		ReduceOnly: true,
	})
	if err != nil {
		logger.Warn("Не удалось разместить тейк-профит", zap.String("symbol", setup.Symbol), zap.Error(err))
	} else {
		orders["take_profit"] = tpOrder
	}

	slOrder, err := m.gateway.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:     setup.Symbol,
		Side:       exitSide,
		Type:       "STOP",
		Quantity:   setup.Quantity,
		Price:      setup.SLPrice,
		StopPrice:  setup.SLPrice,
		ReduceOnly: true,
	})
	if err != nil {
		logger.Warn("Не удалось разместить стоп-лосс", zap.String("symbol", setup.Symbol), zap.Error(err))
	} else {
		orders["stop_loss"] = slOrder
	}

	m.notifyExecution(ctx, setup)

	return orders, nil
}

// OpenPositions возвращает снимок открытых позиций для валидатора
func (m *Manager) OpenPositions(ctx context.Context) ([]*models.Position, error) {
	return m.gateway.GetOpenPositions(ctx)
}

func (m *Manager) notifyExecution(ctx context.Context, setup *models.TradeSetupOutput) {
	if m.notifier == nil {
		return
	}

	sideEmoji := "🚀"
	if setup.Side == models.SideShort {
		sideEmoji = "🔻"
	}

	event := notify.Event{
		Title:  fmt.Sprintf("%s Trade Executed: %s", sideEmoji, setup.Symbol),
		Symbol: setup.Symbol,
		Side:   setup.Side,
		Fields: []notify.Field{
			{Name: "Side", Value: string(setup.Side)},
			{Name: "Lev", Value: fmt.Sprintf("%dx", setup.Leverage)},
			{Name: "Qty", Value: fmt.Sprintf("%g", setup.Quantity)},
			{Name: "Entry", Value: fmt.Sprintf("$%g", setup.EntryPrice)},
			{Name: "TP", Value: fmt.Sprintf("$%g", setup.TPPrice)},
			{Name: "SL", Value: fmt.Sprintf("$%g", setup.SLPrice)},
		},
	}
	if err := m.notifier.Notify(ctx, event); err != nil {
		logger.Warn("Ошибка уведомления об исполнении", zap.Error(err))
	}
}

func (m *Manager) notifyText(ctx context.Context, message string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, notify.Event{Message: message}); err != nil {
		logger.Warn("Ошибка уведомления", zap.Error(err))
	}
}

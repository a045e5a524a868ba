package position

import (
	"context"
	"errors"
	"testing"

	"github.com/skalibog/bftp/internal/exchange"
	"github.com/skalibog/bftp/pkg/models"
)

// fakeGateway фиксирует вызовы и позволяет ронять отдельные ордера
type fakeGateway struct {
	leverage     map[string]int
	requests     []exchange.OrderRequest
	failLeverage bool
	failTypes    map[string]bool
	nextID       int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		leverage:  make(map[string]int),
		failTypes: make(map[string]bool),
	}
}

func (f *fakeGateway) SetLeverage(_ context.Context, symbol string, leverage int) error {
	if f.failLeverage {
		return errors.New("плечо недоступно")
	}
	f.leverage[symbol] = leverage
	return nil
}

func (f *fakeGateway) PlaceOrder(_ context.Context, req exchange.OrderRequest) (*models.Order, error) {
	if f.failTypes[req.Type] {
		return nil, errors.New("ордер отклонен биржей")
	}
	f.requests = append(f.requests, req)
	f.nextID++
	return &models.Order{ID: f.nextID, Symbol: req.Symbol}, nil
}

func (f *fakeGateway) GetOpenPositions(_ context.Context) ([]*models.Position, error) {
	return nil, nil
}

func approvedSetup() *models.TradeSetupOutput {
	return &models.TradeSetupOutput{
		Symbol:     "BTCUSDT",
		Side:       models.SideLong,
		EntryPrice: 100,
		TPPrice:    103,
		SLPrice:    99,
		Leverage:   10,
		Quantity:   100,
		Status:     "PLANNED",
	}
}

func approvedReport() *models.ValidationReport {
	return &models.ValidationReport{Approved: true, Summary: "✅ Вход разрешен"}
}

func TestExecuteTrade(t *testing.T) {
	gateway := newFakeGateway()
	manager := NewManager(gateway, nil)

	orders, err := manager.ExecuteTrade(context.Background(), approvedSetup(), approvedReport())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if gateway.leverage["BTCUSDT"] != 10 {
		t.Errorf("плечо %d, ожидалось 10", gateway.leverage["BTCUSDT"])
	}
	if len(orders) != 3 {
		t.Fatalf("ордеров %d, ожидалось 3", len(orders))
	}
	for _, role := range []string{"entry", "take_profit", "stop_loss"} {
		if orders[role] == nil {
			t.Errorf("отсутствует ордер %s", role)
		}
	}

	if len(gateway.requests) != 3 {
		t.Fatalf("запросов %d, ожидалось 3", len(gateway.requests))
	}
	entry, tp, sl := gateway.requests[0], gateway.requests[1], gateway.requests[2]

	if entry.Side != "BUY" || entry.Type != "LIMIT" || entry.ReduceOnly {
		t.Errorf("входной ордер %+v", entry)
	}
	if entry.Price != 100 || entry.Quantity != 100 {
		t.Errorf("входной ордер %+v", entry)
	}
	if tp.Side != "SELL" || tp.Type != "LIMIT" || !tp.ReduceOnly || tp.Price != 103 {
		t.Errorf("тейк-профит %+v", tp)
	}
	if sl.Side != "SELL" || sl.Type != "STOP" || !sl.ReduceOnly || sl.StopPrice != 99 {
		t.Errorf("стоп-лосс %+v", sl)
	}
}

func TestExecuteTradeShortSides(t *testing.T) {
	gateway := newFakeGateway()
	manager := NewManager(gateway, nil)

	setup := approvedSetup()
	setup.Side = models.SideShort
	setup.TPPrice = 97
	setup.SLPrice = 101

	if _, err := manager.ExecuteTrade(context.Background(), setup, approvedReport()); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	entry, tp, sl := gateway.requests[0], gateway.requests[1], gateway.requests[2]
	if entry.Side != "SELL" {
		t.Errorf("входная сторона %s, ожидалась SELL", entry.Side)
	}
	if tp.Side != "BUY" || sl.Side != "BUY" {
		t.Errorf("выходные стороны %s/%s, ожидались BUY", tp.Side, sl.Side)
	}
}

func TestExecuteTradeRejected(t *testing.T) {
	gateway := newFakeGateway()
	manager := NewManager(gateway, nil)

	report := &models.ValidationReport{
		Approved: false,
		Summary:  "❌ Вход заблокирован: R3_MIN_RR",
	}

	_, err := manager.ExecuteTrade(context.Background(), approvedSetup(), report)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("ожидалась ErrRejected, получено %v", err)
	}
	// Ни один ордер не должен уйти на биржу
	if len(gateway.requests) != 0 {
		t.Errorf("запросов %d, ожидалось 0", len(gateway.requests))
	}
}

func TestExecuteTradeEntryFailure(t *testing.T) {
	gateway := newFakeGateway()
	gateway.failTypes["LIMIT"] = true
	manager := NewManager(gateway, nil)

	if _, err := manager.ExecuteTrade(context.Background(), approvedSetup(), approvedReport()); err == nil {
		t.Error("сбой входного ордера должен вернуть ошибку")
	}
}

func TestExecuteTradeStopFailureTolerated(t *testing.T) {
	gateway := newFakeGateway()
	gateway.failTypes["STOP"] = true
	manager := NewManager(gateway, nil)

	orders, err := manager.ExecuteTrade(context.Background(), approvedSetup(), approvedReport())
	if err != nil {
		t.Fatalf("сбой стоп-лосса не должен ронять исполнение: %v", err)
	}
	if orders["entry"] == nil || orders["take_profit"] == nil {
		t.Error("вход и тейк-профит должны быть размещены")
	}
	if _, ok := orders["stop_loss"]; ok {
		t.Error("упавший стоп-лосс не должен попасть в результат")
	}
}

func TestExecuteTradeLeverageFailureTolerated(t *testing.T) {
	gateway := newFakeGateway()
	gateway.failLeverage = true
	manager := NewManager(gateway, nil)

	orders, err := manager.ExecuteTrade(context.Background(), approvedSetup(), approvedReport())
	if err != nil {
		t.Fatalf("сбой установки плеча не должен ронять исполнение: %v", err)
	}
	if len(orders) != 3 {
		t.Errorf("ордеров %d, ожидалось 3", len(orders))
	}
}

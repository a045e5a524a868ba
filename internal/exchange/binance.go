package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/skalibog/bftp/internal/config"
	"github.com/skalibog/bftp/pkg/models"
)

// BinanceClient клиент для взаимодействия с фьючерсами Binance.
// Выполняет роль источника рыночных данных и шлюза исполнения ордеров.
type BinanceClient struct {
	futures *futures.Client
}

// OrderRequest параметры размещения ордера
type OrderRequest struct {
	Symbol     string
	Side       string // BUY или SELL
	Type       string // LIMIT или STOP
	Quantity   float64
	Price      float64
	StopPrice  float64
	ReduceOnly bool
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) (*BinanceClient, error) {
	if cfg.Testnet {
		futures.UseTestnet = true
	}
	futuresClient := futures.NewClient(cfg.APIKey, cfg.APISecret)

	return &BinanceClient{
		futures: futuresClient,
	}, nil
}

// GetKlines получает исторические свечи, отсортированные по возрастанию
// времени без дубликатов
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	klines, err := c.futures.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}

	candles := make([]*models.Candle, 0, len(klines))
	var lastOpen int64 = -1
	for _, k := range klines {
		if k.OpenTime == lastOpen {
			continue
		}
		lastOpen = k.OpenTime

		candle, err := parseKline(symbol, interval, k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// SetLeverage устанавливает плечо для символа
func (c *BinanceClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := c.futures.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("ошибка установки плеча: %w", err)
	}
	return nil
}

// PlaceOrder размещает ордер и возвращает его идентификатор
func (c *BinanceClient) PlaceOrder(ctx context.Context, req OrderRequest) (*models.Order, error) {
	service := c.futures.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Quantity(formatFloat(req.Quantity)).
		ReduceOnly(req.ReduceOnly)

	switch req.Type {
	case "LIMIT":
		service = service.
			Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(formatFloat(req.Price))
	case "STOP":
		service = service.
			Type(futures.OrderTypeStop).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(formatFloat(req.Price)).
			StopPrice(formatFloat(req.StopPrice))
	default:
		return nil, fmt.Errorf("неподдерживаемый тип ордера: %q", req.Type)
	}

	resp, err := service.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка размещения ордера: %w", err)
	}

	return &models.Order{
		ID:         resp.OrderID,
		Symbol:     req.Symbol,
		Type:       req.Type,
		Price:      req.Price,
		StopPrice:  req.StopPrice,
		Quantity:   req.Quantity,
		ReduceOnly: req.ReduceOnly,
	}, nil
}

// GetOpenPositions возвращает открытые позиции с ненулевым объемом
func (c *BinanceClient) GetOpenPositions(ctx context.Context) ([]*models.Position, error) {
	risks, err := c.futures.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения позиций: %w", err)
	}

	var positions []*models.Position
	for _, r := range risks {
		amount, err := strconv.ParseFloat(r.PositionAmt, 64)
		if err != nil || amount == 0 {
			continue
		}

		side := models.SideLong
		if amount < 0 {
			side = models.SideShort
		}

		entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
		leverage, _ := strconv.Atoi(r.Leverage)
		pnl, _ := strconv.ParseFloat(r.UnRealizedProfit, 64)
		liq, _ := strconv.ParseFloat(r.LiquidationPrice, 64)

		positions = append(positions, &models.Position{
			Symbol:           r.Symbol,
			Side:             side,
			Amount:           amount,
			EntryPrice:       entry,
			Leverage:         leverage,
			UnrealizedPnL:    pnl,
			LiquidationPrice: liq,
		})
	}

	return positions, nil
}

// GetBalance возвращает баланс фьючерсного кошелька по активу
func (c *BinanceClient) GetBalance(ctx context.Context, asset string) (*models.Balance, error) {
	balances, err := c.futures.NewGetBalanceService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения баланса: %w", err)
	}

	for _, b := range balances {
		if b.Asset != asset {
			continue
		}

		total, _ := strconv.ParseFloat(b.Balance, 64)
		available, _ := strconv.ParseFloat(b.AvailableBalance, 64)

		return &models.Balance{
			Exchange:  string(models.ExchangeBinance),
			Asset:     asset,
			Total:     total,
			Available: available,
			Used:      total - available,
		}, nil
	}

	return nil, fmt.Errorf("баланс %s не найден", asset)
}

// parseKline преобразует ответ биржи в свечу
func parseKline(symbol, interval string, k *futures.Kline) (*models.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора свечи: %w", err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора свечи: %w", err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора свечи: %w", err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора свечи: %w", err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора свечи: %w", err)
	}

	return &models.Candle{
		Symbol:    symbol,
		Interval:  interval,
		OpenTime:  time.Unix(k.OpenTime/1000, 0),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		CloseTime: time.Unix(k.CloseTime/1000, 0),
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

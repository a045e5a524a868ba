// Package backtest прогоняет детектор сигналов по исторической серии свечей
// и моделирует исполнение синтетических сделок по TP/SL.
package backtest

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/skalibog/bftp/internal/analysis/signaldet"
	"github.com/skalibog/bftp/pkg/logger"
	"github.com/skalibog/bftp/pkg/models"
)

// Прогрев индикаторов: входы оцениваются начиная с этого индекса
const warmupIndex = 25

// Фиксированные SL/TP синтетических сделок
const (
	syntheticSLPct = 0.01
	syntheticTPPct = 0.02
)

// MarketDataSource источник исторических свечей
type MarketDataSource interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error)
}

// Engine детерминированный прогон истории. Одновременно открыта не более
// одной синтетической сделки.
type Engine struct {
	source   MarketDataSource
	detector *signaldet.Detector
}

// NewEngine создает движок бэктеста
func NewEngine(source MarketDataSource) *Engine {
	return &Engine{
		source:   source,
		detector: signaldet.NewDetector(),
	}
}

// Run выполняет бэктест по символу
func (e *Engine) Run(ctx context.Context, symbol, timeframe string, limit int) (*models.BacktestResult, error) {
	candles, err := e.source.GetKlines(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}
	if len(candles) <= warmupIndex {
		return nil, fmt.Errorf("недостаточно исторических данных: %d свечей", len(candles))
	}

	trades := make([]*models.BacktestTrade, 0)
	var active *models.BacktestTrade

	for i := warmupIndex; i < len(candles); i++ {
		candle := candles[i]

		if active != nil {
			if closeTrade(active, candle) {
				trades = append(trades, active)
				active = nil
			}
			continue
		}

		// Вход оценивается только по префиксу до текущей свечи
		signal := e.detector.Analyze(candles[:i+1])
		if signal.Side != models.SideNeutral {
			active = openTrade(symbol, signal.Side, candle)
		}
	}

	result := &models.BacktestResult{
		Symbol:    symbol,
		Timeframe: timeframe,
		Trades:    trades,
		Stats:     computeStats(trades),
	}

	logger.Info("Бэктест завершен",
		zap.String("symbol", symbol),
		zap.Int("trades", result.Stats.TradeCount),
		zap.Float64("win_rate", result.Stats.WinRate),
		zap.Float64("total_returns_pct", result.Stats.TotalReturnsPct))
	return result, nil
}

// openTrade открывает синтетическую сделку с фиксированными SL/TP
func openTrade(symbol string, side models.Side, candle *models.Candle) *models.BacktestTrade {
	entry := candle.Close

	var sl, tp float64
	if side == models.SideLong {
		sl = entry * (1 - syntheticSLPct)
		tp = entry * (1 + syntheticTPPct)
	} else {
		sl = entry * (1 + syntheticSLPct)
		tp = entry * (1 - syntheticTPPct)
	}

	return &models.BacktestTrade{
		Symbol:     symbol,
		Side:       side,
		EntryPrice: entry,
		SL:         sl,
		TP:         tp,
		Status:     models.TradeStatusOpen,
		OpenedAt:   candle.OpenTime,
	}
}

// closeTrade проверяет выход по TP/SL на свече.
// TP проверяется раньше SL: если оба уровня задеты одной свечой,
// исход засчитывается прибыльным. Внутрисвечного порядка движения
// модель не знает, поведение зафиксировано как документированное.
func closeTrade(trade *models.BacktestTrade, candle *models.Candle) bool {
	if trade.Side == models.SideLong {
		switch {
		case candle.High >= trade.TP:
			finish(trade, models.TradeStatusProfit, trade.TP, candle)
		case candle.Low <= trade.SL:
			finish(trade, models.TradeStatusLoss, trade.SL, candle)
		default:
			return false
		}
		return true
	}

	switch {
	case candle.Low <= trade.TP:
		finish(trade, models.TradeStatusProfit, trade.TP, candle)
	case candle.High >= trade.SL:
		finish(trade, models.TradeStatusLoss, trade.SL, candle)
	default:
		return false
	}
	return true
}

func finish(trade *models.BacktestTrade, status string, exitPrice float64, candle *models.Candle) {
	trade.Status = status
	trade.ExitPrice = exitPrice
	trade.ClosedAt = candle.OpenTime
}

// computeStats агрегирует статистику прогона.
// Пустой список сделок дает нулевую статистику без деления на ноль.
func computeStats(trades []*models.BacktestTrade) models.BacktestStats {
	stats := models.BacktestStats{TradeCount: len(trades)}
	if len(trades) == 0 {
		return stats
	}

	wins := 0
	totalReturns := 0.0
	for _, t := range trades {
		if t.Status == models.TradeStatusProfit {
			wins++
		}
		totalReturns += t.ReturnPct()
	}

	stats.WinRate = round2(float64(wins) / float64(len(trades)) * 100)
	stats.TotalReturnsPct = round2(totalReturns)
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

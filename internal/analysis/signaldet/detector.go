// Package signaldet реализует детектор сигналов входа по развороту CCI.
package signaldet

import (
	"fmt"
	"math"

	"github.com/skalibog/bftp/internal/indicators"
	"github.com/skalibog/bftp/pkg/models"
)

// Минимальное число свечей для анализа
const minCandles = 20

// Коэффициенты предложения SL/TP от среднего диапазона
const (
	slRangeFactor = 1.5
	tpRangeFactor = 3.0
)

// Detector детектор сигналов. Не имеет состояния, сигнал пересчитывается
// заново по любому окну свечей.
type Detector struct{}

// NewDetector создает новый детектор сигналов
func NewDetector() *Detector {
	return &Detector{}
}

// Analyze возвращает ровно один сигнал для последней свечи окна.
// При нехватке данных возвращает NEUTRAL с диагностической причиной,
// никогда не возвращает ошибку.
func (d *Detector) Analyze(candles []*models.Candle) *models.Signal {
	if len(candles) == 0 {
		return &models.Signal{Side: models.SideNeutral, Reason: "No data"}
	}

	last := candles[len(candles)-1]
	signal := &models.Signal{
		Symbol:     last.Symbol,
		Side:       models.SideNeutral,
		EntryPrice: last.Close,
		Timestamp:  last.OpenTime,
	}

	if len(candles) < 5 {
		signal.Reason = "No data"
		return signal
	}
	if len(candles) < minCandles {
		signal.Reason = "Insufficient data"
		return signal
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	rsi := indicators.RSI(closes, indicators.RSIPeriod)
	cci := indicators.CCI(candles, indicators.CCIPeriod)

	n := len(candles)
	lastCCI := cci[n-1]
	prevCCI := cci[n-2]
	prevPrevCCI := cci[n-3]
	lastRSI := rsi[n-1]

	// Разворот CCI: пробой уровня -100 снизу вверх дает лонг,
	// пробой уровня +100 сверху вниз дает шорт.
	// Сравнения с NaN ложны, прогрев индикатора дает NEUTRAL.
	side := models.SideNeutral
	reason := fmt.Sprintf("CCI: %.2f", lastCCI)

	if prevPrevCCI < -100 && prevCCI > -100 {
		side = models.SideLong
		reason = "CCI Reversal Bull (-100 breakout)"
	} else if prevPrevCCI > 100 && prevCCI < 100 {
		side = models.SideShort
		reason = "CCI Reversal Bear (100 breakdown)"
	}

	// RSI только как конфлюенс: помечаем перекупленность, сторону не меняем
	if side == models.SideLong && lastRSI > 60 {
		reason += " (High RSI)"
	}

	signal.Side = side
	signal.Reason = reason
	signal.RSI = nanToZero(lastRSI)
	signal.CCI = nanToZero(lastCCI)
	return signal
}

// SuggestSLTP предлагает SL/TP от среднего диапазона high-low за 14 свечей.
// Детерминированный вспомогательный расчет, независимый от Analyze.
func (d *Detector) SuggestSLTP(candles []*models.Candle, side models.Side) (*models.SLTPSuggestion, error) {
	if len(candles) < indicators.RangePeriod {
		return nil, fmt.Errorf("недостаточно свечей для расчета диапазона: %d", len(candles))
	}

	meanRange := indicators.MeanRange(candles, indicators.RangePeriod)
	if math.IsNaN(meanRange) {
		return nil, fmt.Errorf("средний диапазон не определен для %d свечей", len(candles))
	}

	entry := candles[len(candles)-1].Close

	var sl, tp float64
	if side == models.SideLong {
		sl = entry - meanRange*slRangeFactor
		tp = entry + meanRange*tpRangeFactor
	} else {
		sl = entry + meanRange*slRangeFactor
		tp = entry - meanRange*tpRangeFactor
	}

	return &models.SLTPSuggestion{
		Entry: round2(entry),
		SL:    round2(sl),
		TP:    round2(tp),
		SLPct: round4(math.Abs(entry-sl) / entry * 100),
	}, nil
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

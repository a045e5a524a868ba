// Package indicators содержит чистые функции расчета индикаторов по свечам.
// Значения до окна прогрева равны NaN и не должны использоваться для решений.
package indicators

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"github.com/skalibog/bftp/pkg/models"
)

// Стандартные периоды индикаторов
const (
	RSIPeriod   = 14
	CCIPeriod   = 20
	RangePeriod = 14
)

// RSI рассчитывает RSI по скользящему среднему приростов и падений.
// Первые period значений не определены (NaN).
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if period <= 0 || n <= period {
		return out
	}

	// Разделяем дельты на приросты и падения
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	avgGain := talib.Sma(gains, period)
	avgLoss := talib.Sma(losses, period)

	for i := period; i < n; i++ {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case g == 0 && l == 0:
			// Цена не менялась все окно, RSI не определен
		case l == 0:
			out[i] = 100
		default:
			rs := g / l
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// CCI рассчитывает Commodity Channel Index по типичной цене.
// Нулевое среднее абсолютное отклонение дает NaN, а не панику.
func CCI(candles []*models.Candle, period int) []float64 {
	n := len(candles)
	out := nanSlice(n)
	if period <= 0 || n < period {
		return out
	}

	tp := make([]float64, n)
	for i, c := range candles {
		tp[i] = (c.High + c.Low + c.Close) / 3
	}

	smaTp := talib.Sma(tp, period)

	for i := period - 1; i < n; i++ {
		// Среднее абсолютное отклонение от среднего того же окна
		var mad float64
		for j := i - period + 1; j <= i; j++ {
			mad += math.Abs(tp[j] - smaTp[i])
		}
		mad /= float64(period)
		if mad == 0 {
			continue
		}
		out[i] = (tp[i] - smaTp[i]) / (0.015 * mad)
	}
	return out
}

// MeanRange возвращает средний диапазон high-low за последние period свечей.
// Упрощенный аналог ATR для предложения SL/TP.
func MeanRange(candles []*models.Candle, period int) float64 {
	n := len(candles)
	if period <= 0 || n < period {
		return math.NaN()
	}

	hl := make([]float64, n)
	for i, c := range candles {
		hl[i] = c.High - c.Low
	}

	sma := talib.Sma(hl, period)
	return sma[n-1]
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

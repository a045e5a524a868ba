package signaldet

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/skalibog/bftp/pkg/models"
)

// generateCandles строит свечи по типичным ценам: close равен типичной цене,
// high/low симметричны вокруг нее
func generateCandles(tps []float64) []*models.Candle {
	candles := make([]*models.Candle, len(tps))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, tp := range tps {
		candles[i] = &models.Candle{
			Symbol:   "BTCUSDT",
			High:     tp + 0.5,
			Low:      tp - 0.5,
			Close:    tp,
			OpenTime: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return candles
}

// oscillate возвращает n значений, колеблющихся вокруг базы с шагом 1
func oscillate(base float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = base + 1
		} else {
			out[i] = base - 1
		}
	}
	return out
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name       string
		tps        []float64
		wantSide   models.Side
		wantReason string
	}{
		{
			name:       "Пустое окно",
			tps:        nil,
			wantSide:   models.SideNeutral,
			wantReason: "No data",
		},
		{
			name:       "Меньше пяти свечей",
			tps:        []float64{100, 101, 102},
			wantSide:   models.SideNeutral,
			wantReason: "No data",
		},
		{
			name:       "Меньше двадцати свечей",
			tps:        []float64{100, 101, 102, 101, 100, 101, 102, 101, 100, 101},
			wantSide:   models.SideNeutral,
			wantReason: "Insufficient data",
		},
		{
			name: "Пробой уровня -100 снизу вверх дает лонг",
			// Глубокий провал на третьей свече с конца уводит CCI под -100,
			// восстановление на второй поднимает его выше -100
			tps:        append(oscillate(100, 37), 80, 100, 100),
			wantSide:   models.SideLong,
			wantReason: "CCI Reversal Bull (-100 breakout)",
		},
		{
			name: "Без восстановления выше -100 сигнала нет",
			// Аналог спада CCI -120 -> -105: обе свечи остаются под уровнем
			tps:        append(oscillate(100, 37), 80, 85, 100),
			wantSide:   models.SideNeutral,
			wantReason: "CCI: ",
		},
		{
			name:       "Пробой уровня +100 сверху вниз дает шорт",
			tps:        append(oscillate(100, 37), 120, 100, 100),
			wantSide:   models.SideShort,
			wantReason: "CCI Reversal Bear (100 breakdown)",
		},
		{
			name:       "Спокойный рынок нейтрален",
			tps:        oscillate(100, 40),
			wantSide:   models.SideNeutral,
			wantReason: "CCI: ",
		},
	}

	detector := NewDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal := detector.Analyze(generateCandles(tt.tps))
			if signal == nil {
				t.Fatal("Analyze вернул nil")
			}
			if signal.Side != tt.wantSide {
				t.Errorf("сторона %s, ожидалась %s (reason: %s)", signal.Side, tt.wantSide, signal.Reason)
			}
			if !strings.HasPrefix(signal.Reason, tt.wantReason) {
				t.Errorf("причина %q, ожидался префикс %q", signal.Reason, tt.wantReason)
			}
		})
	}
}

func TestAnalyzeSignalFields(t *testing.T) {
	detector := NewDetector()
	tps := append(oscillate(100, 37), 80, 100, 100)
	candles := generateCandles(tps)

	signal := detector.Analyze(candles)

	if signal.Symbol != "BTCUSDT" {
		t.Errorf("символ %q", signal.Symbol)
	}
	last := candles[len(candles)-1]
	if signal.EntryPrice != last.Close {
		t.Errorf("цена входа %f, ожидалась %f", signal.EntryPrice, last.Close)
	}
	if !signal.Timestamp.Equal(last.OpenTime) {
		t.Errorf("время сигнала %v, ожидалось %v", signal.Timestamp, last.OpenTime)
	}
	if math.IsNaN(signal.RSI) || math.IsNaN(signal.CCI) {
		t.Error("NaN в полях сигнала недопустим")
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	detector := NewDetector()
	candles := generateCandles(append(oscillate(100, 37), 80, 100, 100))

	first := detector.Analyze(candles)
	second := detector.Analyze(candles)

	if *first != *second {
		t.Errorf("повторный анализ того же окна дал другой сигнал: %+v и %+v", first, second)
	}
}

func TestSuggestSLTP(t *testing.T) {
	// Постоянный диапазон high-low = 1, последняя цена закрытия 100
	candles := generateCandles(oscillate(100, 20))
	candles[len(candles)-1].Close = 100
	candles[len(candles)-1].High = 100.5
	candles[len(candles)-1].Low = 99.5

	detector := NewDetector()

	t.Run("Лонг", func(t *testing.T) {
		got, err := detector.SuggestSLTP(candles, models.SideLong)
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if got.SL != 98.5 || got.TP != 103 {
			t.Errorf("SL %f TP %f, ожидались 98.5 и 103", got.SL, got.TP)
		}
		if got.SLPct != 1.5 {
			t.Errorf("SLPct %f, ожидалось 1.5", got.SLPct)
		}
	})

	t.Run("Шорт зеркален", func(t *testing.T) {
		got, err := detector.SuggestSLTP(candles, models.SideShort)
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if got.SL != 101.5 || got.TP != 97 {
			t.Errorf("SL %f TP %f, ожидались 101.5 и 97", got.SL, got.TP)
		}
	})

	t.Run("Недостаточно данных", func(t *testing.T) {
		if _, err := detector.SuggestSLTP(generateCandles(oscillate(100, 5)), models.SideLong); err == nil {
			t.Error("ожидалась ошибка при коротком окне")
		}
	})
}

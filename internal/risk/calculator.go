// Package risk содержит риск-калькулятор планов сделок и валидатор правил входа.
// Оба расчета чистые и детерминированные, пригодны для конкурентного вызова.
package risk

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/skalibog/bftp/internal/config"
	"github.com/skalibog/bftp/pkg/logger"
	"github.com/skalibog/bftp/pkg/models"
)

// ErrInvalidSetup некорректные входные данные расчета: вырожденный стоп,
// неположительный баланс или плечо. Всплывает к вызывающему сразу,
// молчаливых значений по умолчанию нет.
var ErrInvalidSetup = errors.New("некорректная настройка сделки")

// Границы переменного плеча
const (
	minLeverage = 1
	maxLeverage = 125
)

// Порог потребления маржи для оценки цены ликвидации (изолированная маржа)
const liqMarginThreshold = 0.9

// Статус свежего плана сделки
const statusPlanned = "PLANNED"

// Calculate превращает предложенную сделку в полный план: плечо, количество,
// оценка ликвидации, комиссии, соотношение риск/прибыль.
// Конфигурация передается по значению и не изменяется.
func Calculate(cfg config.RiskConfig, setup models.TradeSetupInput) (*models.TradeSetupOutput, error) {
	if setup.Side != models.SideLong && setup.Side != models.SideShort {
		return nil, fmt.Errorf("%w: сторона %q", ErrInvalidSetup, setup.Side)
	}
	if setup.EntryPrice <= 0 {
		return nil, fmt.Errorf("%w: цена входа %.8f", ErrInvalidSetup, setup.EntryPrice)
	}
	if setup.EntryPrice == setup.SLPrice {
		return nil, fmt.Errorf("%w: стоп-лосс равен цене входа", ErrInvalidSetup)
	}
	if cfg.AccountBalance <= 0 {
		return nil, fmt.Errorf("%w: баланс %.2f", ErrInvalidSetup, cfg.AccountBalance)
	}

	// Шаг 1: проценты SL/TP от цены входа
	slPct := math.Abs(setup.EntryPrice-setup.SLPrice) / setup.EntryPrice
	tpPct := math.Abs(setup.TPPrice-setup.EntryPrice) / setup.EntryPrice

	// Шаг 2: соотношение риск/прибыль
	rrRatio := tpPct / slPct

	// Шаг 3: плечо
	leverage, err := resolveLeverage(cfg, slPct)
	if err != nil {
		return nil, err
	}

	// Шаг 4: количество от риска на сделку
	riskAmount := cfg.AccountBalance * cfg.DefaultRiskRatio
	quantity := riskAmount / math.Abs(setup.EntryPrice-setup.SLPrice)

	// Шаг 5: стоимость позиции
	positionValue := quantity * setup.EntryPrice

	// Шаг 6: оценка цены ликвидации при изолированной марже
	var liqPrice float64
	if setup.Side == models.SideLong {
		liqPrice = setup.EntryPrice * (1 - liqMarginThreshold/float64(leverage))
	} else {
		liqPrice = setup.EntryPrice * (1 + liqMarginThreshold/float64(leverage))
	}

	// Шаг 7: комиссии и безубыточный процент прибыли
	feeRate := lookupFeeRate(cfg.Exchange, cfg.FeeType)
	feeAmount := positionValue * feeRate
	minProfitPct := feeAmount / cfg.AccountBalance * 100

	return &models.TradeSetupOutput{
		ID:         uuid.NewString(),
		Symbol:     setup.Symbol,
		Side:       setup.Side,
		EntryPrice: setup.EntryPrice,
		TPPrice:    setup.TPPrice,
		SLPrice:    setup.SLPrice,

		SLPct:           roundTo(slPct*100, 4),
		TPPct:           roundTo(tpPct*100, 4),
		RiskRewardRatio: roundTo(rrRatio, 2),
		Leverage:        leverage,
		Quantity:        roundTo(quantity, 6),
		EstimatedLiq:    roundTo(liqPrice, 2),
		FeeEstimatePct:  roundTo(feeRate*100, 4),
		MinProfitPct:    roundTo(minProfitPct, 4),

		Status:    statusPlanned,
		CreatedAt: time.Now(),
	}, nil
}

// resolveLeverage выбирает плечо по режиму конфигурации.
// VARIABLE выводится из фиксированного процента потери и ограничивается [1, 125].
// FIXED берется как есть: выход за границы не ограничивается молча,
// только фиксируется в логе.
func resolveLeverage(cfg config.RiskConfig, slPct float64) (int, error) {
	if cfg.LeverageMode == models.LeverageVariable {
		leverage := int(math.Round(cfg.FixedLossPct / slPct))
		if leverage < minLeverage {
			leverage = minLeverage
		}
		if leverage > maxLeverage {
			leverage = maxLeverage
		}
		return leverage, nil
	}

	if cfg.FixedLeverage <= 0 {
		return 0, fmt.Errorf("%w: фиксированное плечо %d", ErrInvalidSetup, cfg.FixedLeverage)
	}
	if cfg.FixedLeverage > maxLeverage {
		logger.Warn("Фиксированное плечо вне допустимого диапазона, расчет продолжается без ограничения",
			zap.Int("leverage", cfg.FixedLeverage),
			zap.Int("max", maxLeverage))
	}
	return cfg.FixedLeverage, nil
}

// roundTo воспроизводимое округление до заданного числа знаков
func roundTo(v float64, places int32) float64 {
	rounded, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return rounded
}

package models

import (
	"fmt"
	"time"
)

// Candle представляет свечу
type Candle struct {
	Symbol    string
	Interval  string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// Side представляет направление сигнала или позиции
type Side string

const (
	SideLong    Side = "LONG"
	SideShort   Side = "SHORT"
	SideNeutral Side = "NEUTRAL"
)

// LeverageMode режим расчета плеча
type LeverageMode string

const (
	LeverageVariable LeverageMode = "VARIABLE"
	LeverageFixed    LeverageMode = "FIXED"
)

// FeeType тип комиссии
type FeeType string

const (
	FeeLimit  FeeType = "LIMIT"
	FeeMarket FeeType = "MARKET"
)

// Exchange поддерживаемая биржа (закрытый набор, разрешается при загрузке конфигурации)
type Exchange string

const (
	ExchangeBybit   Exchange = "BYBIT"
	ExchangeBinance Exchange = "BINANCE"
)

// ParseExchange разрешает идентификатор биржи в типизированный вариант
func ParseExchange(name string) (Exchange, error) {
	switch Exchange(name) {
	case ExchangeBybit, ExchangeBinance:
		return Exchange(name), nil
	default:
		return "", fmt.Errorf("неизвестная биржа: %q", name)
	}
}

// ParseLeverageMode разрешает режим плеча
func ParseLeverageMode(name string) (LeverageMode, error) {
	switch LeverageMode(name) {
	case LeverageVariable, LeverageFixed:
		return LeverageMode(name), nil
	default:
		return "", fmt.Errorf("неизвестный режим плеча: %q", name)
	}
}

// ParseFeeType разрешает тип комиссии
func ParseFeeType(name string) (FeeType, error) {
	switch FeeType(name) {
	case FeeLimit, FeeMarket:
		return FeeType(name), nil
	default:
		return "", fmt.Errorf("неизвестный тип комиссии: %q", name)
	}
}

// Signal представляет торговый сигнал для последней свечи окна
type Signal struct {
	Symbol     string
	Side       Side
	EntryPrice float64
	RSI        float64
	CCI        float64
	Reason     string
	Timestamp  time.Time
}

// SLTPSuggestion предложение стоп-лосса и тейк-профита на основе среднего диапазона
type SLTPSuggestion struct {
	Entry float64
	SL    float64
	TP    float64
	SLPct float64
}

// TradeSetupInput вручную предложенная сделка
type TradeSetupInput struct {
	Symbol     string
	Side       Side
	EntryPrice float64
	TPPrice    float64
	SLPrice    float64
}

// TradeSetupOutput полный план сделки, рассчитанный риск-калькулятором.
// Не изменяется после создания, исправления требуют нового расчета.
type TradeSetupOutput struct {
	ID         string
	Symbol     string
	Side       Side
	EntryPrice float64
	TPPrice    float64
	SLPrice    float64

	SLPct            float64
	TPPct            float64
	RiskRewardRatio  float64
	Leverage         int
	Quantity         float64
	EstimatedLiq     float64
	FeeEstimatePct   float64
	MinProfitPct     float64

	Status    string
	CreatedAt time.Time
}

// ValidationCheck результат проверки одного правила
type ValidationCheck struct {
	Rule      string
	Pass      bool
	Value     float64
	Threshold float64
	Message   string
}

// ValidationReport вердикт валидатора по всем правилам
type ValidationReport struct {
	Approved    bool
	Checks      []ValidationCheck
	FailedRules []string
	Summary     string
}

// Position открытая позиция на бирже (снимок на момент запроса)
type Position struct {
	Symbol           string
	Side             Side
	Amount           float64
	EntryPrice       float64
	Leverage         int
	UnrealizedPnL    float64
	LiquidationPrice float64
}

// Balance баланс фьючерсного кошелька
type Balance struct {
	Exchange  string
	Asset     string
	Total     float64
	Available float64
	Used      float64
}

// Order результат размещения ордера через шлюз биржи
type Order struct {
	ID         int64
	Symbol     string
	Side       Side
	Type       string
	Price      float64
	StopPrice  float64
	Quantity   float64
	ReduceOnly bool
}

// Статусы синтетических сделок бэктеста
const (
	TradeStatusOpen   = "OPEN"
	TradeStatusProfit = "PROFIT"
	TradeStatusLoss   = "LOSS"
)

// BacktestTrade синтетическая сделка, открытая и закрытая при прогоне истории
type BacktestTrade struct {
	Symbol     string
	Side       Side
	EntryPrice float64
	SL         float64
	TP         float64
	ExitPrice  float64
	Status     string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// ReturnPct процентная доходность сделки, для шорта знак инвертируется
func (t *BacktestTrade) ReturnPct() float64 {
	if t.EntryPrice == 0 {
		return 0
	}
	ret := (t.ExitPrice - t.EntryPrice) / t.EntryPrice
	if t.Side == SideShort {
		ret = -ret
	}
	return ret * 100
}

// BacktestStats агрегированная статистика прогона
type BacktestStats struct {
	WinRate         float64
	TotalReturnsPct float64
	TradeCount      int
}

// BacktestResult результат бэктеста: сделки и статистика
type BacktestResult struct {
	Symbol    string
	Timeframe string
	Trades    []*BacktestTrade
	Stats     BacktestStats
}

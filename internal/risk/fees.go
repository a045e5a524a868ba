package risk

import (
	"go.uber.org/zap"

	"github.com/skalibog/bftp/pkg/logger"
	"github.com/skalibog/bftp/pkg/models"
)

// Таблица комиссий по биржам, ставки за круг (вход + выход)
var feeTable = map[models.Exchange]map[models.FeeType]float64{
	models.ExchangeBybit: {
		models.FeeLimit:  0.0002,
		models.FeeMarket: 0.0012,
	},
	models.ExchangeBinance: {
		models.FeeLimit:  0.0002,
		models.FeeMarket: 0.0010,
	},
}

// Таблица по умолчанию для неопознанной биржи
const defaultFeeExchange = models.ExchangeBybit

// lookupFeeRate возвращает ставку комиссии для биржи и типа ордера.
// Неизвестная биржа получает таблицу по умолчанию, падение здесь
// недопустимо: планирование должно оставаться доступным.
func lookupFeeRate(exchange models.Exchange, feeType models.FeeType) float64 {
	fees, ok := feeTable[exchange]
	if !ok {
		logger.Warn("Неизвестная биржа, применяется таблица комиссий по умолчанию",
			zap.String("exchange", string(exchange)),
			zap.String("default", string(defaultFeeExchange)))
		fees = feeTable[defaultFeeExchange]
	}

	rate, ok := fees[feeType]
	if !ok {
		logger.Warn("Неизвестный тип комиссии, применяется рыночная ставка",
			zap.String("fee_type", string(feeType)))
		rate = fees[models.FeeMarket]
	}
	return rate
}

package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/skalibog/bftp/internal/config"
	"github.com/skalibog/bftp/pkg/models"
)

// Пороговые значения правил валидации
const (
	MinRRRatio             = 1.5
	MaxLeverage            = 125
	MaxPositionPct         = 0.30
	MaxConcurrentPositions = 3
	MinLiqDistancePct      = 2.0
)

// Идентификаторы правил
const (
	RuleMinRR        = "R3_MIN_RR"
	RuleFeeBreakeven = "R4_FEE_BREAKEVEN"
	RuleMaxPositions = "R5_MAX_POSITIONS"
	RuleLiqSafety    = "R6_LIQ_SAFETY"
	RuleMarginPct    = "R7_MARGIN_PCT"
)

// Validate прогоняет план сделки через фиксированную батарею правил.
// Каждое правило независимо, одобрение требует прохождения всех.
// Без ввода-вывода и побочных эффектов: повторный вызов с теми же
// аргументами дает тот же отчет.
func Validate(out *models.TradeSetupOutput, cfg config.RiskConfig, activePositions []*models.Position) *models.ValidationReport {
	checks := make([]models.ValidationCheck, 0, 5)

	// R3: минимальное соотношение риск/прибыль
	rr := out.RiskRewardRatio
	checks = append(checks, models.ValidationCheck{
		Rule:      RuleMinRR,
		Pass:      rr >= MinRRRatio,
		Value:     rr,
		Threshold: MinRRRatio,
		Message:   failMessage(rr >= MinRRRatio, fmt.Sprintf("RR %.2f < минимум %.1f", rr, MinRRRatio)),
	})

	// R4: цель прибыли должна перекрывать комиссии за круг
	feeOK := out.TPPct > out.MinProfitPct
	checks = append(checks, models.ValidationCheck{
		Rule:      RuleFeeBreakeven,
		Pass:      feeOK,
		Value:     out.TPPct,
		Threshold: out.MinProfitPct,
		Message:   failMessage(feeOK, fmt.Sprintf("TP %.4f%% не перекрывает безубыток по комиссии %.4f%%", out.TPPct, out.MinProfitPct)),
	})

	// R5: число одновременных позиций с учетом самой заявки
	posCount := len(activePositions) + 1
	posOK := posCount <= MaxConcurrentPositions
	checks = append(checks, models.ValidationCheck{
		Rule:      RuleMaxPositions,
		Pass:      posOK,
		Value:     float64(posCount),
		Threshold: MaxConcurrentPositions,
		Message:   failMessage(posOK, fmt.Sprintf("позиций %d > максимум %d", posCount, MaxConcurrentPositions)),
	})

	// R6: безопасное расстояние до ликвидации
	liqDist := math.Abs(out.EntryPrice-out.EstimatedLiq) / out.EntryPrice * 100
	liqOK := liqDist >= MinLiqDistancePct
	checks = append(checks, models.ValidationCheck{
		Rule:      RuleLiqSafety,
		Pass:      liqOK,
		Value:     roundTo(liqDist, 2),
		Threshold: MinLiqDistancePct,
		Message:   failMessage(liqOK, fmt.Sprintf("до ликвидации %.2f%% < минимум %.1f%%", liqDist, MinLiqDistancePct)),
	})

	// R7: доля баланса, замороженная в марже
	margin := out.Quantity * out.EntryPrice / float64(out.Leverage)
	marginPct := margin / cfg.AccountBalance
	marginOK := marginPct <= MaxPositionPct
	checks = append(checks, models.ValidationCheck{
		Rule:      RuleMarginPct,
		Pass:      marginOK,
		Value:     roundTo(marginPct*100, 2),
		Threshold: MaxPositionPct * 100,
		Message:   failMessage(marginOK, fmt.Sprintf("маржа %.2f%% > максимум %.0f%%", marginPct*100, MaxPositionPct*100)),
	})

	var failed []string
	for _, c := range checks {
		if !c.Pass {
			failed = append(failed, c.Rule)
		}
	}

	approved := len(failed) == 0
	summary := "✅ Вход разрешен"
	if !approved {
		summary = "❌ Вход заблокирован: " + strings.Join(failed, ", ")
	}

	return &models.ValidationReport{
		Approved:    approved,
		Checks:      checks,
		FailedRules: failed,
		Summary:     summary,
	}
}

func failMessage(pass bool, msg string) string {
	if pass {
		return "OK"
	}
	return msg
}

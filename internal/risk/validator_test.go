package risk

import (
	"reflect"
	"strings"
	"testing"

	"github.com/skalibog/bftp/pkg/models"
)

// approvedOutput план из рабочего примера: все пять правил проходят
func approvedOutput() *models.TradeSetupOutput {
	return &models.TradeSetupOutput{
		Symbol:          "BTCUSDT",
		Side:            models.SideLong,
		EntryPrice:      100,
		TPPrice:         103,
		SLPrice:         99,
		SLPct:           1.0,
		TPPct:           3.0,
		RiskRewardRatio: 3.0,
		Leverage:        10,
		Quantity:        100,
		EstimatedLiq:    91.0,
		FeeEstimatePct:  0.12,
		MinProfitPct:    0.12,
		Status:          "PLANNED",
	}
}

func TestValidateApproved(t *testing.T) {
	report := Validate(approvedOutput(), baseConfig(), nil)

	if !report.Approved {
		t.Fatalf("план из примера должен быть одобрен: %s", report.Summary)
	}
	if len(report.Checks) != 5 {
		t.Errorf("проверок %d, ожидалось 5", len(report.Checks))
	}
	if len(report.FailedRules) != 0 {
		t.Errorf("непройденные правила %v, ожидался пустой список", report.FailedRules)
	}
	if report.Summary != "✅ Вход разрешен" {
		t.Errorf("сводка %q", report.Summary)
	}
	for _, check := range report.Checks {
		if !check.Pass {
			t.Errorf("правило %s не прошло: %s", check.Rule, check.Message)
		}
		if check.Message != "OK" {
			t.Errorf("сообщение пройденного правила %s: %q, ожидалось OK", check.Rule, check.Message)
		}
	}
}

func TestValidateSingleRuleFailures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(out *models.TradeSetupOutput) []*models.Position
		wantRule string
	}{
		{
			name: "R3: RR ниже минимума",
			mutate: func(out *models.TradeSetupOutput) []*models.Position {
				out.RiskRewardRatio = 1.4
				return nil
			},
			wantRule: RuleMinRR,
		},
		{
			name: "R4: TP не перекрывает комиссию",
			mutate: func(out *models.TradeSetupOutput) []*models.Position {
				out.TPPct = 0.12
				out.RiskRewardRatio = 3.0
				return nil
			},
			wantRule: RuleFeeBreakeven,
		},
		{
			name: "R5: лимит одновременных позиций",
			mutate: func(out *models.TradeSetupOutput) []*models.Position {
				return []*models.Position{
					{Symbol: "ETHUSDT"},
					{Symbol: "SOLUSDT"},
					{Symbol: "XRPUSDT"},
				}
			},
			wantRule: RuleMaxPositions,
		},
		{
			name: "R6: ликвидация слишком близко",
			mutate: func(out *models.TradeSetupOutput) []*models.Position {
				// 1% до ликвидации при пороге 2%
				out.EstimatedLiq = 99
				return nil
			},
			wantRule: RuleLiqSafety,
		},
		{
			name: "R7: маржа превышает долю баланса",
			mutate: func(out *models.TradeSetupOutput) []*models.Position {
				// 500 * 100 / 10 = 5000 маржи при балансе 10000
				out.Quantity = 500
				return nil
			},
			wantRule: RuleMarginPct,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := approvedOutput()
			positions := tt.mutate(out)

			report := Validate(out, baseConfig(), positions)

			if report.Approved {
				t.Fatal("план должен быть отклонен")
			}
			if len(report.FailedRules) != 1 || report.FailedRules[0] != tt.wantRule {
				t.Errorf("непройденные правила %v, ожидалось только %s", report.FailedRules, tt.wantRule)
			}
			if !strings.HasPrefix(report.Summary, "❌ Вход заблокирован: ") {
				t.Errorf("сводка %q", report.Summary)
			}
			if !strings.Contains(report.Summary, tt.wantRule) {
				t.Errorf("сводка %q не содержит %s", report.Summary, tt.wantRule)
			}
		})
	}
}

func TestValidateMultipleFailures(t *testing.T) {
	out := approvedOutput()
	out.RiskRewardRatio = 1.0
	out.EstimatedLiq = 99.5

	report := Validate(out, baseConfig(), nil)

	if report.Approved {
		t.Fatal("план должен быть отклонен")
	}
	want := []string{RuleMinRR, RuleLiqSafety}
	if !reflect.DeepEqual(report.FailedRules, want) {
		t.Errorf("непройденные правила %v, ожидались %v в порядке проверки", report.FailedRules, want)
	}
}

func TestValidateIdempotent(t *testing.T) {
	out := approvedOutput()
	out.RiskRewardRatio = 1.2
	cfg := baseConfig()

	first := Validate(out, cfg, nil)
	second := Validate(out, cfg, nil)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("повторная валидация дала другой отчет: %+v и %+v", first, second)
	}
}

func TestValidatePositionBoundary(t *testing.T) {
	// Две открытые позиции плюс заявка укладываются в лимит из трех
	positions := []*models.Position{
		{Symbol: "ETHUSDT"},
		{Symbol: "SOLUSDT"},
	}

	report := Validate(approvedOutput(), baseConfig(), positions)

	if !report.Approved {
		t.Errorf("граничное число позиций должно проходить: %s", report.Summary)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/skalibog/bftp/internal/backtest"
	"github.com/skalibog/bftp/internal/config"
	"github.com/skalibog/bftp/internal/exchange"
	"github.com/skalibog/bftp/internal/notify"
	"github.com/skalibog/bftp/internal/position"
	"github.com/skalibog/bftp/internal/risk"
	"github.com/skalibog/bftp/internal/scanner"
	"github.com/skalibog/bftp/internal/storage"
	"github.com/skalibog/bftp/pkg/logger"
	"github.com/skalibog/bftp/pkg/models"
)

func main() {
	logger.Init()
	defer logger.GetLogger().Sync()

	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	backtestSymbol := flag.String("backtest", "", "одноразовый бэктест по символу и выход")
	timeframe := flag.String("timeframe", "1h", "таймфрейм бэктеста")
	limit := flag.Int("limit", 500, "количество свечей бэктеста")
	stats := flag.String("stats", "", "показать статистику журнала по символу и выйти")
	plan := flag.Bool("plan", false, "рассчитать и проверить план сделки, затем выйти")
	planSymbol := flag.String("symbol", "BTCUSDT", "символ плана сделки")
	planSide := flag.String("side", "LONG", "сторона плана сделки: LONG или SHORT")
	planEntry := flag.Float64("entry", 0, "цена входа плана сделки")
	planTP := flag.Float64("tp", 0, "цена тейк-профита плана сделки")
	planSL := flag.Float64("sl", 0, "цена стоп-лосса плана сделки")
	execute := flag.Bool("execute", false, "исполнить одобренный план на бирже")
	flag.Parse()

	// Проверяем наличие файла конфигурации
	logger.Info("Проверка наличия файла конфигурации", zap.String("path", *configPath))
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		logger.Fatal("Файл конфигурации не найден", zap.String("path", *configPath))
	}

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	// Создаем контекст с возможностью отмены через горутину
	ctx, cancel := context.WithCancel(context.Background())

	// Настраиваем обработку сигналов завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nЗавершение работы...")
		cancel()
	}()

	// Инициализируем клиент биржи
	client, err := exchange.NewBinanceClient(cfg.Binance)
	if err != nil {
		logger.Fatal("Ошибка инициализации клиента биржи", zap.Error(err))
	}

	// Журнал сигналов и сделок опционален
	var store *storage.InfluxDBStorage
	if cfg.Storage.Enabled {
		store, err = storage.NewInfluxDBStorage(cfg.Storage)
		if err != nil {
			logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
		}
		defer store.Close()
	}

	// Статистика журнала
	if *stats != "" {
		runStats(ctx, store, *stats)
		return
	}

	// Одноразовый бэктест
	if *backtestSymbol != "" {
		runBacktest(ctx, client, store, *backtestSymbol, *timeframe, *limit)
		return
	}

	notifier := buildNotifier(cfg.Notify)
	manager := position.NewManager(client, notifier)

	// Ручное планирование сделки
	if *plan {
		setup := models.TradeSetupInput{
			Symbol:     *planSymbol,
			Side:       models.Side(*planSide),
			EntryPrice: *planEntry,
			TPPrice:    *planTP,
			SLPrice:    *planSL,
		}
		runPlan(ctx, cfg, client, manager, setup, *execute)
		return
	}

	var journal scanner.Journal
	if store != nil {
		journal = store
	}

	// Запускаем сканер и ждем завершения
	scan := scanner.New(cfg.Trading, cfg.Scanner, client, notifier, journal)
	if !scan.Start(ctx) {
		logger.Fatal("Сканер уже запущен")
	}

	<-scan.Done()
}

// buildNotifier собирает каналы доставки уведомлений
func buildNotifier(cfg config.NotifyConfig) notify.Notifier {
	targets := []notify.Notifier{
		notify.NewDiscordNotifier(cfg.DiscordWebhookURL),
	}

	if cfg.TelegramToken != "" {
		telegram, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warn("Telegram-нотификатор недоступен", zap.Error(err))
		} else {
			targets = append(targets, telegram)
		}
	}

	return notify.NewMulti(targets...)
}

// runStats печатает статистику журнала закрытых сделок
func runStats(ctx context.Context, store *storage.InfluxDBStorage, symbol string) {
	if store == nil {
		logger.Fatal("Статистика требует включенного хранилища")
	}

	stats, err := store.GetStats(ctx, symbol)
	if err != nil {
		logger.Fatal("Ошибка получения статистики", zap.Error(err))
	}

	logger.Info("Статистика журнала",
		zap.String("symbol", symbol),
		zap.Int("trades", stats.TradeCount),
		zap.Float64("win_rate", stats.WinRate),
		zap.Float64("total_pnl_pct", stats.TotalPnL))

	signals, err := store.GetSignalHistory(ctx, symbol, 10)
	if err != nil {
		logger.Warn("Не удалось получить историю сигналов", zap.Error(err))
		return
	}
	for _, s := range signals {
		logger.Info("Сигнал из журнала",
			zap.Time("time", s.Timestamp),
			zap.String("side", string(s.Side)),
			zap.Float64("entry", s.EntryPrice),
			zap.String("reason", s.Reason))
	}
}

// runBacktest выполняет одноразовый бэктест и печатает статистику.
// При включенном хранилище закрытые сделки попадают в журнал.
func runBacktest(ctx context.Context, client *exchange.BinanceClient, store *storage.InfluxDBStorage, symbol, timeframe string, limit int) {
	engine := backtest.NewEngine(client)
	result, err := engine.Run(ctx, symbol, timeframe, limit)
	if err != nil {
		logger.Fatal("Ошибка бэктеста", zap.Error(err))
	}

	for _, trade := range result.Trades {
		logger.Debug("Сделка бэктеста",
			zap.String("side", string(trade.Side)),
			zap.String("status", trade.Status),
			zap.Float64("entry", trade.EntryPrice),
			zap.Float64("exit", trade.ExitPrice),
			zap.Float64("return_pct", trade.ReturnPct()))

		if store != nil {
			if err := store.SaveTrade(ctx, trade); err != nil {
				logger.Warn("Ошибка записи сделки в журнал", zap.Error(err))
			}
		}
	}

	logger.Info("Результат бэктеста",
		zap.String("symbol", result.Symbol),
		zap.Int("trades", result.Stats.TradeCount),
		zap.Float64("win_rate", result.Stats.WinRate),
		zap.Float64("total_returns_pct", result.Stats.TotalReturnsPct))
}

// runPlan рассчитывает план сделки, проверяет его валидатором и при
// явном запросе исполняет на бирже
func runPlan(ctx context.Context, cfg *config.Config, client *exchange.BinanceClient, manager *position.Manager, setup models.TradeSetupInput, execute bool) {
	riskCfg := cfg.Risk

	// С ключами API баланс и открытые позиции берутся с биржи,
	// без ключей расчет идет от баланса из конфигурации
	var activePositions []*models.Position
	if cfg.Binance.APIKey != "" {
		balance, err := client.GetBalance(ctx, "USDT")
		if err != nil {
			logger.Warn("Не удалось получить баланс, расчет от конфигурации", zap.Error(err))
		} else {
			riskCfg.AccountBalance = balance.Available
		}

		activePositions, err = manager.OpenPositions(ctx)
		if err != nil {
			logger.Warn("Не удалось получить открытые позиции, валидация без них", zap.Error(err))
		}
	}

	output, err := risk.Calculate(riskCfg, setup)
	if err != nil {
		logger.Fatal("Ошибка расчета плана", zap.Error(err))
	}

	report := risk.Validate(output, riskCfg, activePositions)

	logger.Info("План сделки",
		zap.String("id", output.ID),
		zap.String("symbol", output.Symbol),
		zap.String("side", string(output.Side)),
		zap.Int("leverage", output.Leverage),
		zap.Float64("quantity", output.Quantity),
		zap.Float64("rr_ratio", output.RiskRewardRatio),
		zap.Float64("estimated_liq", output.EstimatedLiq),
		zap.Float64("min_profit_pct", output.MinProfitPct))

	for _, check := range report.Checks {
		logger.Info("Проверка правила",
			zap.String("rule", check.Rule),
			zap.Bool("pass", check.Pass),
			zap.Float64("value", check.Value),
			zap.Float64("threshold", check.Threshold),
			zap.String("message", check.Message))
	}
	logger.Info(report.Summary)

	if !execute {
		return
	}

	orders, err := manager.ExecuteTrade(ctx, output, report)
	if err != nil {
		logger.Fatal("Исполнение не выполнено", zap.Error(err))
	}
	for name, order := range orders {
		logger.Info("Ордер размещен",
			zap.String("role", name),
			zap.Int64("order_id", order.ID),
			zap.String("symbol", order.Symbol))
	}
}

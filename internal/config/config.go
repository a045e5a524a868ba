package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/skalibog/bftp/pkg/logger"
	"github.com/skalibog/bftp/pkg/models"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance BinanceConfig `yaml:"binance"`
	Trading TradingConfig `yaml:"trading"`
	Scanner ScannerConfig `yaml:"scanner"`
	Risk    RiskConfig    `yaml:"risk"`
	Storage StorageConfig `yaml:"storage"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

// TradingConfig содержит настройки торговли
type TradingConfig struct {
	Symbols     []string `yaml:"symbols"`
	Interval    string   `yaml:"interval"`
	CandleLimit int      `yaml:"candle_limit"`
}

// ScannerConfig настройки цикла сканирования
type ScannerConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

// RiskConfig параметры риск-калькулятора. Передается по значению
// в каждый расчет и никогда не изменяется ядром.
type RiskConfig struct {
	AccountBalance   float64 `yaml:"account_balance"`
	DefaultRiskRatio float64 `yaml:"default_risk_ratio"`
	FixedLossPct     float64 `yaml:"fixed_loss_pct"`
	LeverageModeName string  `yaml:"leverage_mode"`
	FixedLeverage    int     `yaml:"fixed_leverage"`
	FeeTypeName      string  `yaml:"fee_type"`
	ExchangeName     string  `yaml:"exchange"`

	// Типизированные варианты, разрешаются один раз при загрузке
	LeverageMode models.LeverageMode `yaml:"-"`
	FeeType      models.FeeType      `yaml:"-"`
	Exchange     models.Exchange     `yaml:"-"`
}

// StorageConfig настройки журнала сигналов и сделок
type StorageConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// NotifyConfig настройки уведомлений
type NotifyConfig struct {
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
	TelegramToken     string `yaml:"telegram_token"`
	TelegramChatID    int64  `yaml:"telegram_chat_id"`
}

// Load загружает конфигурацию из файла и окружения
func Load(path string) (*Config, error) {
	// .env не обязателен, ключи могут прийти из окружения процесса
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	config.applyDefaults()
	config.applyEnv()

	if err := config.resolve(); err != nil {
		return nil, err
	}

	logger.Debug("Загружена конфигурация", zap.String("path", path), zap.Any("config", config))
	logger.Info("Загружена конфигурация",
		zap.Any("Symbols", config.Trading.Symbols),
		zap.String("Exchange", string(config.Risk.Exchange)))
	return &config, nil
}

// applyDefaults заполняет значения по умолчанию
func (c *Config) applyDefaults() {
	if len(c.Trading.Symbols) == 0 {
		c.Trading.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	}
	if c.Trading.Interval == "" {
		c.Trading.Interval = "5m"
	}
	if c.Trading.CandleLimit == 0 {
		c.Trading.CandleLimit = 50
	}
	if c.Scanner.IntervalSeconds == 0 {
		c.Scanner.IntervalSeconds = 60
	}
	if c.Risk.DefaultRiskRatio == 0 {
		c.Risk.DefaultRiskRatio = 0.01
	}
	if c.Risk.FixedLossPct == 0 {
		c.Risk.FixedLossPct = 0.10
	}
	if c.Risk.FixedLeverage == 0 {
		c.Risk.FixedLeverage = 10
	}
	if c.Risk.LeverageModeName == "" {
		c.Risk.LeverageModeName = string(models.LeverageVariable)
	}
	if c.Risk.FeeTypeName == "" {
		c.Risk.FeeTypeName = string(models.FeeMarket)
	}
	if c.Risk.ExchangeName == "" {
		c.Risk.ExchangeName = string(models.ExchangeBybit)
	}
}

// applyEnv переносит секреты из окружения поверх файла
func (c *Config) applyEnv() {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Binance.APISecret = v
	}
}

// resolve разрешает строковые идентификаторы в закрытые наборы вариантов.
// Неопознанная биржа или режим отвергаются на этапе конфигурации,
// а не при первом расчете.
func (c *Config) resolve() error {
	exchange, err := models.ParseExchange(c.Risk.ExchangeName)
	if err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}
	c.Risk.Exchange = exchange

	mode, err := models.ParseLeverageMode(c.Risk.LeverageModeName)
	if err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}
	c.Risk.LeverageMode = mode

	feeType, err := models.ParseFeeType(c.Risk.FeeTypeName)
	if err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}
	c.Risk.FeeType = feeType

	return nil
}

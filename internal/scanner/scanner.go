// Package scanner реализует цикл сканирования символов.
// Сканер принадлежит вызывающему как явный экземпляр: состояние и свежие
// сигналы доступны через методы-аксессоры, защищенные от конкурентной записи.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/skalibog/bftp/internal/analysis/signaldet"
	"github.com/skalibog/bftp/internal/config"
	"github.com/skalibog/bftp/internal/notify"
	"github.com/skalibog/bftp/pkg/logger"
	"github.com/skalibog/bftp/pkg/models"
)

// Число подряд полностью неудачных тиков, после которого пауза растягивается
const maxConsecutiveFailures = 3

// MarketDataSource источник свечей для сканирования
type MarketDataSource interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error)
}

// Journal приемник сигналов для истории
type Journal interface {
	SaveSignal(ctx context.Context, signal *models.Signal) error
}

// Scanner периодически прогоняет детектор по всем символам
type Scanner struct {
	symbols      []string
	interval     string
	candleLimit  int
	scanInterval time.Duration

	source   MarketDataSource
	notifier notify.Notifier
	journal  Journal
	detector *signaldet.Detector

	mu      sync.RWMutex
	running bool
	latest  map[string]*models.Signal
	cancel  context.CancelFunc
	done    chan struct{}
}

// New создает сканер. Журнал и нотификатор могут быть nil.
func New(trading config.TradingConfig, cfg config.ScannerConfig, source MarketDataSource, notifier notify.Notifier, journal Journal) *Scanner {
	return &Scanner{
		symbols:      trading.Symbols,
		interval:     trading.Interval,
		candleLimit:  trading.CandleLimit,
		scanInterval: time.Duration(cfg.IntervalSeconds) * time.Second,
		source:       source,
		notifier:     notifier,
		journal:      journal,
		detector:     signaldet.NewDetector(),
		latest:       make(map[string]*models.Signal),
	}
}

// Start запускает цикл сканирования в отдельной горутине.
// Повторный запуск работающего сканера это нормальный исход, а не
// ошибка: возвращается false и ничего не меняется.
func (s *Scanner) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx, s.done)

	logger.Info("Сканер запущен",
		zap.Strings("symbols", s.symbols),
		zap.Duration("interval", s.scanInterval))
	return true
}

// Stop кооперативно останавливает сканер: запрос наблюдается в ближайшей
// точке ожидания, начатый тик доводится до конца
func (s *Scanner) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
}

// Done возвращает канал, закрываемый после полной остановки цикла
func (s *Scanner) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// IsRunning сообщает, работает ли цикл. Безопасно во время тика.
func (s *Scanner) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// LatestSignals возвращает снимок свежих сигналов по всем символам
func (s *Scanner) LatestSignals() map[string]*models.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]*models.Signal, len(s.latest))
	for symbol, signal := range s.latest {
		snapshot[symbol] = signal
	}
	return snapshot
}

// LatestSignal возвращает свежий сигнал по символу
func (s *Scanner) LatestSignal(symbol string) (*models.Signal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	signal, ok := s.latest[symbol]
	return signal, ok
}

// run главный цикл: тик по всем символам, затем пауза.
// Три подряд полностью неудачных тика растягивают паузу по кривой
// backoff до десятикратного интервала, первый здоровый тик сбрасывает ее.
func (s *Scanner) run(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
		logger.Info("Сканер остановлен")
	}()

	b := &backoff.Backoff{
		Min:    s.scanInterval,
		Max:    10 * s.scanInterval,
		Factor: 2,
	}
	consecutiveFailures := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if s.tick(ctx) {
			consecutiveFailures++
		} else {
			consecutiveFailures = 0
			b.Reset()
		}

		sleep := s.scanInterval
		if consecutiveFailures >= maxConsecutiveFailures {
			sleep = b.Duration()
			logger.Warn("Подряд неудачные тики, пауза увеличена",
				zap.Int("failures", consecutiveFailures),
				zap.Duration("sleep", sleep))
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// tick обрабатывает все символы. Возвращает true, если не удался ни один
// символ: сбой одного символа пропускается, частичные результаты фиксируются.
func (s *Scanner) tick(ctx context.Context) bool {
	okCount := 0

	for _, symbol := range s.symbols {
		candles, err := s.source.GetKlines(ctx, symbol, s.interval, s.candleLimit)
		if err != nil {
			logger.Warn("Символ пропущен: ошибка получения свечей",
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}

		signal := s.detector.Analyze(candles)
		if signal.Symbol == "" {
			signal.Symbol = symbol
		}

		// Фиксируем сигнал посимвольно: последняя запись выигрывает,
		// читатели видят снимок даже во время тика
		s.mu.Lock()
		s.latest[symbol] = signal
		s.mu.Unlock()
		okCount++

		if signal.Side != models.SideNeutral {
			s.emit(ctx, signal)
		}
	}

	return okCount == 0 && len(s.symbols) > 0
}

// emit уведомляет и журналирует ненейтральный сигнал.
// Сбои доставки не прерывают цикл.
func (s *Scanner) emit(ctx context.Context, signal *models.Signal) {
	logger.Info("Обнаружен сигнал",
		zap.String("symbol", signal.Symbol),
		zap.String("side", string(signal.Side)),
		zap.String("reason", signal.Reason))

	if s.notifier != nil {
		event := notify.Event{
			Title:   fmt.Sprintf("🎯 %s %s Signal Detected!", signal.Symbol, signal.Side),
			Message: signal.Reason,
			Symbol:  signal.Symbol,
			Side:    signal.Side,
		}
		if err := s.notifier.Notify(ctx, event); err != nil {
			logger.Warn("Ошибка уведомления о сигнале", zap.Error(err))
		}
	}

	if s.journal != nil {
		if err := s.journal.SaveSignal(ctx, signal); err != nil {
			logger.Warn("Ошибка записи сигнала в журнал", zap.Error(err))
		}
	}
}

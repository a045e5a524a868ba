// Package storage реализует журнал сигналов и сделок поверх InfluxDB.
package storage

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/skalibog/bftp/internal/config"
	"github.com/skalibog/bftp/pkg/models"
)

// Stats агрегированная статистика журнала закрытых сделок
type Stats struct {
	WinRate    float64
	TotalPnL   float64
	TradeCount int
}

// InfluxDBStorage журнал на базе InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPI
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(context.Background())
	if err != nil {
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	queryAPI := client.QueryAPI(cfg.Organization)
	writeAPI := client.WriteAPI(cfg.Organization, cfg.Bucket)

	return &InfluxDBStorage{
		client:   client,
		queryAPI: queryAPI,
		writeAPI: writeAPI,
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.client.Close()
}

// SaveSignal сохраняет сигнал в журнал
func (s *InfluxDBStorage) SaveSignal(ctx context.Context, signal *models.Signal) error {
	point := influxdb2.NewPoint(
		"signals",
		map[string]string{
			"symbol": signal.Symbol,
			"side":   string(signal.Side),
		},
		map[string]interface{}{
			"entry_price": signal.EntryPrice,
			"rsi":         signal.RSI,
			"cci":         signal.CCI,
			"reason":      signal.Reason,
		},
		signal.Timestamp,
	)

	s.writeAPI.WritePoint(point)
	s.writeAPI.Flush()

	return nil
}

// GetSignalHistory получает историю сигналов для символа
func (s *InfluxDBStorage) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.Signal, error) {
	// Формируем Flux-запрос
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -30d)
			|> filter(fn: (r) => r._measurement == "signals")
			|> filter(fn: (r) => r.symbol == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, s.bucket, symbol, limit)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса сигналов: %w", err)
	}

	var signals []*models.Signal
	for result.Next() {
		record := result.Record()

		entryPrice, _ := record.ValueByKey("entry_price").(float64)
		rsi, _ := record.ValueByKey("rsi").(float64)
		cci, _ := record.ValueByKey("cci").(float64)
		reason, _ := record.ValueByKey("reason").(string)
		side, _ := record.ValueByKey("side").(string)

		signals = append(signals, &models.Signal{
			Symbol:     symbol,
			Side:       models.Side(side),
			EntryPrice: entryPrice,
			RSI:        rsi,
			CCI:        cci,
			Reason:     reason,
			Timestamp:  record.Time(),
		})
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return signals, nil
}

// SaveTrade сохраняет закрытую сделку в журнал
func (s *InfluxDBStorage) SaveTrade(ctx context.Context, trade *models.BacktestTrade) error {
	point := influxdb2.NewPoint(
		"trades",
		map[string]string{
			"symbol": trade.Symbol,
			"side":   string(trade.Side),
			"status": trade.Status,
		},
		map[string]interface{}{
			"entry_price": trade.EntryPrice,
			"exit_price":  trade.ExitPrice,
			"sl":          trade.SL,
			"tp":          trade.TP,
			"return_pct":  trade.ReturnPct(),
		},
		trade.ClosedAt,
	)

	s.writeAPI.WritePoint(point)
	s.writeAPI.Flush()

	return nil
}

// GetTrades получает закрытые сделки из журнала
func (s *InfluxDBStorage) GetTrades(ctx context.Context, symbol string, limit int) ([]*models.BacktestTrade, error) {
	// Формируем Flux-запрос
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -90d)
			|> filter(fn: (r) => r._measurement == "trades")
			|> filter(fn: (r) => r.symbol == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, s.bucket, symbol, limit)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса сделок: %w", err)
	}

	var trades []*models.BacktestTrade
	for result.Next() {
		record := result.Record()

		entryPrice, _ := record.ValueByKey("entry_price").(float64)
		exitPrice, _ := record.ValueByKey("exit_price").(float64)
		sl, _ := record.ValueByKey("sl").(float64)
		tp, _ := record.ValueByKey("tp").(float64)
		side, _ := record.ValueByKey("side").(string)
		status, _ := record.ValueByKey("status").(string)

		trades = append(trades, &models.BacktestTrade{
			Symbol:     symbol,
			Side:       models.Side(side),
			EntryPrice: entryPrice,
			ExitPrice:  exitPrice,
			SL:         sl,
			TP:         tp,
			Status:     status,
			ClosedAt:   record.Time(),
		})
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return trades, nil
}

// GetStats возвращает статистику журнала: долю прибыльных сделок,
// суммарную доходность и число сделок
func (s *InfluxDBStorage) GetStats(ctx context.Context, symbol string) (*Stats, error) {
	trades, err := s.GetTrades(ctx, symbol, 1000)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TradeCount: len(trades)}
	if len(trades) == 0 {
		return stats, nil
	}

	wins := 0
	for _, t := range trades {
		ret := t.ReturnPct()
		stats.TotalPnL += ret
		if ret > 0 {
			wins++
		}
	}
	stats.WinRate = float64(wins) / float64(len(trades)) * 100

	return stats, nil
}

// internal/storage/influxdb.go
package storage

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/skalibog/bfsa/internal/config"
	"github.com/skalibog/bfsa/pkg/logger"
	"github.com/skalibog/bfsa/pkg/models"
	"go.uber.org/zap"
)

// measurementMarket измерение с рыночными метриками пар
const measurementMarket = "market_metrics"

// InfluxDBStorage записывает рыночные метрики каждого цикла в InfluxDB.
// Сигналы не сохраняются.
type InfluxDBStorage struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(ctx context.Context, cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	logger.Info("Подключено хранилище InfluxDB",
		zap.String("url", cfg.URL),
		zap.String("bucket", cfg.Bucket))

	return &InfluxDBStorage{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() error {
	s.client.Close()
	return nil
}

// SaveMetrics записывает метрики успешно проанализированных пар одного цикла
func (s *InfluxDBStorage) SaveMetrics(ctx context.Context, cycleID string, recs []*models.Recommendation) error {
	points := make([]*write.Point, 0, len(recs))
	for _, rec := range recs {
		if rec == nil || rec.Failed() {
			continue
		}
		points = append(points, metricsPoint(cycleID, rec))
	}
	if len(points) == 0 {
		return nil
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи метрик в InfluxDB: %w", err)
	}

	logger.Debug("Метрики записаны в InfluxDB",
		zap.String("cycle_id", cycleID),
		zap.Int("points", len(points)))
	return nil
}

func metricsPoint(cycleID string, rec *models.Recommendation) *write.Point {
	fields := map[string]interface{}{
		"price":         rec.Price,
		"funding":       rec.Funding,
		"open_interest": rec.OpenInterest,
		"atr":           rec.ATR,
		"atr_pct":       rec.ATRPercent,
		"cycle_id":      cycleID,
	}
	// Недоступная дельта не записывается, чтобы не путать ее с нулевой
	if rec.CVD != nil {
		fields["cvd"] = *rec.CVD
	}

	return influxdb2.NewPoint(
		measurementMarket,
		map[string]string{
			"symbol": rec.Symbol,
		},
		fields,
		rec.Timestamp,
	)
}

// internal/analysis/volumedelta/analyzer.go
package volumedelta

import (
	"context"
	"fmt"

	"github.com/skalibog/bfsa/pkg/logger"
	"github.com/skalibog/bfsa/pkg/models"
	"go.uber.org/zap"
)

// deltaInterval таймфрейм свечей для расчета дельты
const deltaInterval = "1m"

// CandleSource источник свечей
type CandleSource interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error)
}

// Analyzer рассчитывает приближенную кумулятивную дельту объемов (CVD)
type Analyzer struct {
	source  CandleSource
	minutes int
}

// NewAnalyzer создает новый анализатор дельты объемов
func NewAnalyzer(source CandleSource, minutes int) *Analyzer {
	return &Analyzer{
		source:  source,
		minutes: minutes,
	}
}

// Compute возвращает CVD за последние minutes минутных свечей.
// nil означает, что дельта недоступна (ошибка биржи или нет данных), а не нулевое давление.
func (a *Analyzer) Compute(ctx context.Context, symbol string) *float64 {
	cvd, err := a.compute(ctx, symbol)
	if err != nil {
		logger.Warn("Дельта объемов недоступна",
			zap.String("symbol", symbol),
			zap.Int("minutes", a.minutes),
			zap.Error(err))
		return nil
	}
	return &cvd
}

func (a *Analyzer) compute(ctx context.Context, symbol string) (float64, error) {
	if a.minutes <= 0 {
		return 0, fmt.Errorf("некорректное окно дельты: %d минут", a.minutes)
	}

	candles, err := a.source.GetKlines(ctx, symbol, deltaInterval, a.minutes)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения минутных свечей: %w", err)
	}
	if len(candles) == 0 {
		return 0, fmt.Errorf("нет минутных свечей для %s", symbol)
	}

	return CumulativeDelta(candles), nil
}

// CumulativeDelta суммирует дельту объема по свечам.
// Агрессивные покупки берутся из taker buy base volume, продажи - остаток объема свечи.
// Это приближение: потиковый признак агрессора не используется.
func CumulativeDelta(candles []*models.Candle) float64 {
	var cvd float64
	for _, c := range candles {
		cvd += Delta(c)
	}
	return cvd
}

// Delta дельта объема одной свечи
func Delta(c *models.Candle) float64 {
	return c.TakerBuyBase - (c.Volume - c.TakerBuyBase)
}

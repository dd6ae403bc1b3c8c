package recommendation

import (
	"context"
	"fmt"
	"time"

	"github.com/skalibog/bfsa/internal/analysis/funding"
	"github.com/skalibog/bfsa/internal/analysis/technical"
	"github.com/skalibog/bfsa/internal/analysis/volumedelta"
	"github.com/skalibog/bfsa/internal/config"
	"github.com/skalibog/bfsa/pkg/logger"
	"github.com/skalibog/bfsa/pkg/models"
	"go.uber.org/zap"
)

// MarketData рыночные данные, нужные движку рекомендаций
type MarketData interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error)
	GetFundingRate(ctx context.Context, symbol string) (float64, error)
	GetOpenInterest(ctx context.Context, symbol string) (float64, error)
}

// Engine формирует рекомендацию по одной паре
type Engine struct {
	config     config.AnalysisConfig
	source     MarketData
	volatility *technical.Analyzer
	funding    *funding.Analyzer
	delta      *volumedelta.Analyzer
	now        func() time.Time
}

// NewEngine создает движок рекомендаций
func NewEngine(source MarketData, cfg config.AnalysisConfig) *Engine {
	return &Engine{
		config:     cfg,
		source:     source,
		volatility: technical.NewAnalyzer(cfg.ATRPeriod),
		funding:    funding.NewAnalyzer(source, cfg.Signal.FundingThreshold),
		delta:      volumedelta.NewAnalyzer(source, cfg.CVDMinutes),
		now:        time.Now,
	}
}

// Recommend рассчитывает метрики пары и применяет правило рекомендаций.
// Любая ошибка получения данных дает запись об ошибке, а не прерывает цикл.
func (e *Engine) Recommend(ctx context.Context, symbol, timeframe string) *models.Recommendation {
	rec, err := e.recommend(ctx, symbol, timeframe)
	if err != nil {
		logger.Warn("Ошибка анализа пары",
			zap.String("symbol", symbol),
			zap.String("timeframe", timeframe),
			zap.Error(err))
		return models.NewErrorRecommendation(symbol, err, e.now())
	}

	logger.Debug("Рекомендация сформирована",
		zap.String("symbol", symbol),
		zap.String("signal", string(rec.Signal)),
		zap.Float64("price", rec.Price),
		zap.Float64("atr_pct", rec.ATRPercent),
		zap.Float64("funding", rec.Funding))
	return rec
}

func (e *Engine) recommend(ctx context.Context, symbol, timeframe string) (*models.Recommendation, error) {
	candles, err := e.source.GetKlines(ctx, symbol, timeframe, e.config.CandleLimit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}

	vol, err := e.volatility.Analyze(candles)
	if err != nil {
		return nil, fmt.Errorf("ошибка расчета ATR: %w", err)
	}

	fundingRes, err := e.funding.Analyze(ctx, symbol)
	if err != nil {
		return nil, err
	}

	oi, err := e.source.GetOpenInterest(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения открытого интереса: %w", err)
	}

	cvd := e.delta.Compute(ctx, symbol)

	decision := Decide(Inputs{
		Price:      vol.Price,
		ATRPercent: vol.ATRPercent,
		Crowding:   fundingRes.Crowding,
		CVD:        cvd,
	}, e.config.Signal)

	return &models.Recommendation{
		Symbol:       symbol,
		Timestamp:    e.now(),
		Price:        vol.Price,
		Funding:      fundingRes.Rate,
		OpenInterest: oi,
		CVD:          cvd,
		ATR:          vol.ATR,
		ATRPercent:   vol.ATRPercent,
		Signal:       decision.Signal,
		Reason:       decision.Reason,
		Levels:       decision.Levels,
	}, nil
}

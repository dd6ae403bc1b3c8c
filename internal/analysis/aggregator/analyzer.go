package aggregator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/skalibog/bfsa/internal/config"
	"github.com/skalibog/bfsa/internal/notify"
	"github.com/skalibog/bfsa/internal/state"
	"github.com/skalibog/bfsa/pkg/logger"
	"github.com/skalibog/bfsa/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Ranker отбирает пары для очередного цикла
type Ranker interface {
	TopN(ctx context.Context, n int) []string
}

// Recommender формирует рекомендацию по одной паре
type Recommender interface {
	Recommend(ctx context.Context, symbol, timeframe string) *models.Recommendation
}

// Notifier доставляет текст уведомления, ошибка доставки не критична
type Notifier interface {
	Notify(ctx context.Context, text string) bool
}

// Sink принимает метрики завершенного цикла
type Sink interface {
	SaveMetrics(ctx context.Context, cycleID string, recs []*models.Recommendation) error
}

// Transition новый торговый сигнал по паре
type Transition struct {
	Symbol   string
	Signal   models.SignalKind
	Notified bool
}

// CycleReport итог одного цикла анализа
type CycleReport struct {
	ID              string
	StartedAt       time.Time
	Duration        time.Duration
	Timeframe       string
	Symbols         []string
	Recommendations []*models.Recommendation
	Transitions     []Transition
	Failed          int
}

// Analyzer выполняет циклы анализа: отбор пар, рекомендации, отслеживание сигналов и уведомления
type Analyzer struct {
	trading  config.TradingConfig
	workers  int
	ranker   Ranker
	engine   Recommender
	tracker  *state.Tracker
	notifier Notifier
	sink     Sink
}

// NewAnalyzer создает новый анализатор. notifier и sink могут быть nil.
func NewAnalyzer(cfg *config.Config, ranker Ranker, engine Recommender, tracker *state.Tracker, notifier Notifier, sink Sink) *Analyzer {
	workers := cfg.Analysis.Workers
	if workers < 1 {
		workers = 1
	}

	return &Analyzer{
		trading:  cfg.Trading,
		workers:  workers,
		ranker:   ranker,
		engine:   engine,
		tracker:  tracker,
		notifier: notifier,
		sink:     sink,
	}
}

// EvaluateCycle формирует рекомендации для пар в исходном порядке.
// Пары обрабатываются параллельно не более чем workers горутинами.
func (a *Analyzer) EvaluateCycle(ctx context.Context, symbols []string, timeframe string) []*models.Recommendation {
	results := make([]*models.Recommendation, len(symbols))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			results[i] = a.engine.Recommend(ctx, symbol, timeframe)
			return nil
		})
	}
	// Ошибки пар уже превращены в записи об ошибке
	_ = g.Wait()

	return results
}

// RunCycle выполняет один полный цикл анализа
func (a *Analyzer) RunCycle(ctx context.Context) *CycleReport {
	report := &CycleReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Timeframe: a.trading.Timeframe,
	}
	cycleID := zap.String("cycle_id", report.ID)

	report.Symbols = a.ranker.TopN(ctx, a.trading.TopN)
	report.Recommendations = a.EvaluateCycle(ctx, report.Symbols, report.Timeframe)

	for _, rec := range report.Recommendations {
		if rec.Failed() {
			report.Failed++
			continue
		}
		if !a.tracker.Update(rec.Symbol, rec.Signal) {
			continue
		}

		transition := Transition{Symbol: rec.Symbol, Signal: rec.Signal}
		if a.notifier != nil {
			transition.Notified = a.notifier.Notify(ctx, notify.FormatSignal(rec))
		}
		report.Transitions = append(report.Transitions, transition)

		logger.Info("Новый сигнал",
			cycleID,
			zap.String("symbol", rec.Symbol),
			zap.String("signal", string(rec.Signal)),
			zap.Float64("price", rec.Price),
			zap.Bool("notified", transition.Notified))
	}

	if a.sink != nil {
		if err := a.sink.SaveMetrics(ctx, report.ID, report.Recommendations); err != nil {
			logger.Warn("Не удалось сохранить метрики цикла", cycleID, zap.Error(err))
		}
	}

	report.Duration = time.Since(report.StartedAt)
	logger.Info("Цикл анализа завершен",
		cycleID,
		zap.Int("symbols", len(report.Symbols)),
		zap.Int("failed", report.Failed),
		zap.Int("transitions", len(report.Transitions)),
		zap.Duration("duration", report.Duration))

	return report
}

// Run запускает циклы анализа: первый сразу, затем по таймеру или ручному запросу.
// Циклы идут строго последовательно, запросы во время цикла объединяются в один.
func (a *Analyzer) Run(ctx context.Context, interval time.Duration, trigger <-chan struct{}, onReport func(*CycleReport)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		report := a.RunCycle(ctx)
		if onReport != nil {
			onReport(report)
		}

		select {
		case <-ctx.Done():
			logger.Info("Остановка цикла анализа")
			return
		case <-ticker.C:
		case <-trigger:
			logger.Debug("Ручной запуск цикла анализа")
			ticker.Reset(interval)
		}
	}
}

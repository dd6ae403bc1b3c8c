package volatility

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/skalibog/bfsa/internal/config"
	"github.com/skalibog/bfsa/pkg/logger"
	"github.com/skalibog/bfsa/pkg/models"
	"go.uber.org/zap"
)

// TickerSource источник 24-часовой статистики по всем парам
type TickerSource interface {
	GetTicker24h(ctx context.Context) ([]models.MarketTicker, error)
}

// Ranker отбирает самые волатильные пары за 24 часа
type Ranker struct {
	source   TickerSource
	config   config.TradingConfig
	denylist map[string]struct{}
}

// NewRanker создает новый ранжировщик пар
func NewRanker(source TickerSource, cfg config.TradingConfig) *Ranker {
	denylist := make(map[string]struct{}, len(cfg.Denylist))
	for _, s := range cfg.Denylist {
		denylist[strings.ToUpper(s)] = struct{}{}
	}

	return &Ranker{
		source:   source,
		config:   cfg,
		denylist: denylist,
	}
}

// TopN возвращает до n самых волатильных пар. Никогда не завершается ошибкой:
// при недоступной бирже или пустом отборе возвращается резервный список.
func (r *Ranker) TopN(ctx context.Context, n int) []string {
	if n <= 0 {
		return []string{}
	}

	tickers, err := r.source.GetTicker24h(ctx)
	if err != nil {
		logger.Warn("Не удалось получить 24h статистику, используется резервный список",
			zap.Error(err))
		return r.fallback(n)
	}

	symbols := RankTopN(r.Filter(tickers), n)
	if len(symbols) == 0 {
		logger.Warn("Нет пар после фильтрации, используется резервный список",
			zap.Int("tickers", len(tickers)))
		return r.fallback(n)
	}

	logger.Debug("Отобраны волатильные пары", zap.Strings("symbols", symbols))
	return symbols
}

// Filter оставляет USDT-контракты без маркера PERP, не из черного списка и с ненулевым объемом
func (r *Ranker) Filter(tickers []models.MarketTicker) []models.MarketTicker {
	out := make([]models.MarketTicker, 0, len(tickers))
	for _, t := range tickers {
		if !strings.HasSuffix(t.Symbol, r.config.QuoteSuffix) {
			continue
		}
		if r.config.PerpetualMarker != "" && strings.Contains(t.Symbol, r.config.PerpetualMarker) {
			continue
		}
		if _, denied := r.denylist[t.Symbol]; denied {
			continue
		}
		if !(t.Volume > 0) || math.IsNaN(t.PriceChangePercent) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (r *Ranker) fallback(n int) []string {
	fallback := r.config.FallbackSymbols
	if n > len(fallback) {
		n = len(fallback)
	}
	out := make([]string, n)
	copy(out, fallback[:n])
	return out
}

// RankTopN сортирует пары по модулю изменения цены, при равенстве по объему,
// и возвращает первые n символов
func RankTopN(tickers []models.MarketTicker, n int) []string {
	if n <= 0 {
		return []string{}
	}

	ranked := make([]models.MarketTicker, len(tickers))
	copy(ranked, tickers)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		absA, absB := math.Abs(a.PriceChangePercent), math.Abs(b.PriceChangePercent)
		if absA != absB {
			return absA > absB
		}
		if a.Volume != b.Volume {
			return a.Volume > b.Volume
		}
		// Полное равенство: рост выше падения, затем по алфавиту
		if a.PriceChangePercent != b.PriceChangePercent {
			return a.PriceChangePercent > b.PriceChangePercent
		}
		return a.Symbol < b.Symbol
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	symbols := make([]string, n)
	for i := 0; i < n; i++ {
		symbols[i] = ranked[i].Symbol
	}
	return symbols
}

package technical

import (
	"errors"
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/bfsa/pkg/models"
)

var (
	// ErrNoCandles возвращается для пустой серии свечей
	ErrNoCandles = errors.New("нет свечей для расчета")
	// ErrInvalidPeriod возвращается для неположительного периода ATR
	ErrInvalidPeriod = errors.New("период ATR должен быть положительным")
)

// Volatility волатильность пары по последней свече
type Volatility struct {
	Price      float64
	ATR        float64
	ATRPercent float64
}

// Analyzer рассчитывает ATR по серии свечей
type Analyzer struct {
	period int
}

// NewAnalyzer создает новый анализатор волатильности
func NewAnalyzer(period int) *Analyzer {
	return &Analyzer{
		period: period,
	}
}

// Analyze возвращает цену закрытия последней свечи, ATR и ATR в долях цены
func (a *Analyzer) Analyze(candles []*models.Candle) (*Volatility, error) {
	atr, err := ATR(candles, a.period)
	if err != nil {
		return nil, err
	}

	price := candles[len(candles)-1].Close
	return &Volatility{
		Price:      price,
		ATR:        atr,
		ATRPercent: ATRPercent(atr, price),
	}, nil
}

// TrueRange рассчитывает истинный диапазон для каждой свечи.
// У первой свечи нет предыдущего закрытия, для нее берется high - low.
func TrueRange(candles []*models.Candle) []float64 {
	if len(candles) == 0 {
		return []float64{}
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	tr := talib.TRange(highs, lows, closes)
	tr[0] = highs[0] - lows[0]
	return tr
}

// ATRSeries рассчитывает скользящее среднее истинного диапазона.
// Пока свечей меньше периода, среднее берется по всем доступным.
func ATRSeries(candles []*models.Candle, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPeriod, period)
	}
	if len(candles) == 0 {
		return nil, ErrNoCandles
	}

	tr := TrueRange(candles)
	atr := make([]float64, len(tr))
	for i := range tr {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		var sum float64
		for _, v := range tr[start : i+1] {
			sum += v
		}
		atr[i] = sum / float64(i+1-start)
	}
	return atr, nil
}

// ATR возвращает значение ATR на последней свече
func ATR(candles []*models.Candle, period int) (float64, error) {
	series, err := ATRSeries(candles, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// ATRPercent возвращает ATR в долях цены (0 при нулевой цене)
func ATRPercent(atr, price float64) float64 {
	if price == 0 {
		return 0
	}
	return atr / price
}

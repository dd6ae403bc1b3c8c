// internal/analysis/funding/analyzer.go
package funding

import (
	"context"
	"fmt"
)

// Crowding перекос позиций, который следует из знака ставки финансирования
type Crowding int

const (
	// CrowdingNone ставка в нейтральной зоне
	CrowdingNone Crowding = iota
	// CrowdingShorts отрицательная ставка: короткие позиции платят длинным
	CrowdingShorts
	// CrowdingLongs положительная ставка: длинные позиции платят коротким
	CrowdingLongs
)

func (c Crowding) String() string {
	switch c {
	case CrowdingShorts:
		return "shorts"
	case CrowdingLongs:
		return "longs"
	default:
		return "none"
	}
}

// RateSource источник ставок финансирования
type RateSource interface {
	GetFundingRate(ctx context.Context, symbol string) (float64, error)
}

// Result последняя ставка финансирования и ее интерпретация
type Result struct {
	Rate     float64
	Crowding Crowding
}

// Analyzer реализует анализатор ставок финансирования
type Analyzer struct {
	source    RateSource
	threshold float64
}

// NewAnalyzer создает новый анализатор ставок финансирования
func NewAnalyzer(source RateSource, threshold float64) *Analyzer {
	return &Analyzer{
		source:    source,
		threshold: threshold,
	}
}

// Analyze получает последнюю ставку финансирования и определяет перекос позиций
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (*Result, error) {
	rate, err := a.source.GetFundingRate(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ставок финансирования: %w", err)
	}

	return &Result{
		Rate:     rate,
		Crowding: Classify(rate, a.threshold),
	}, nil
}

// Classify сравнивает ставку с порогом строго: значение на границе нейтрально
func Classify(rate, threshold float64) Crowding {
	switch {
	case rate < -threshold:
		return CrowdingShorts
	case rate > threshold:
		return CrowdingLongs
	default:
		return CrowdingNone
	}
}

package volumedelta

import (
	"context"
	"errors"
	"testing"

	"github.com/skalibog/bfsa/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCandles struct {
	candles  []*models.Candle
	err      error
	interval string
	limit    int
}

func (f *fakeCandles) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	f.interval = interval
	f.limit = limit
	return f.candles, f.err
}

func TestCumulativeDelta(t *testing.T) {
	candles := []*models.Candle{
		{Volume: 100, TakerBuyBase: 70}, // +40
		{Volume: 50, TakerBuyBase: 10},  // -30
		{Volume: 20, TakerBuyBase: 10},  // 0
	}
	assert.InDelta(t, 10, CumulativeDelta(candles), 1e-9)
	assert.Zero(t, CumulativeDelta(nil))
}

func TestComputeRequestsMinuteCandles(t *testing.T) {
	source := &fakeCandles{candles: []*models.Candle{
		{Volume: 10, TakerBuyBase: 2},
		{Volume: 10, TakerBuyBase: 3},
	}}
	a := NewAnalyzer(source, 60)

	cvd := a.Compute(context.Background(), "BTCUSDT")
	require.NotNil(t, cvd)
	assert.InDelta(t, -10, *cvd, 1e-9)
	assert.Equal(t, "1m", source.interval)
	assert.Equal(t, 60, source.limit)
}

func TestComputeZeroIsAvailable(t *testing.T) {
	source := &fakeCandles{candles: []*models.Candle{{Volume: 10, TakerBuyBase: 5}}}
	cvd := NewAnalyzer(source, 60).Compute(context.Background(), "ETHUSDT")

	require.NotNil(t, cvd)
	assert.Zero(t, *cvd)
}

func TestComputeUnavailable(t *testing.T) {
	cases := map[string]CandleSource{
		"provider error": &fakeCandles{err: errors.New("timeout")},
		"no candles":     &fakeCandles{},
	}
	for name, source := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, NewAnalyzer(source, 60).Compute(context.Background(), "BTCUSDT"))
		})
	}

	assert.Nil(t, NewAnalyzer(&fakeCandles{}, 0).Compute(context.Background(), "BTCUSDT"))
}

package recommendation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skalibog/bfsa/internal/config"
	"github.com/skalibog/bfsa/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarket struct {
	candles      []*models.Candle
	deltaCandles []*models.Candle
	funding      float64
	oi           float64

	candlesErr error
	deltaErr   error
	fundingErr error
	oiErr      error

	requests []string
}

func (f *fakeMarket) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	f.requests = append(f.requests, interval)
	if interval == "1m" {
		return f.deltaCandles, f.deltaErr
	}
	return f.candles, f.candlesErr
}

func (f *fakeMarket) GetFundingRate(ctx context.Context, symbol string) (float64, error) {
	return f.funding, f.fundingErr
}

func (f *fakeMarket) GetOpenInterest(ctx context.Context, symbol string) (float64, error) {
	return f.oi, f.oiErr
}

// flatCandles свечи с истинным диапазоном 2 вокруг цены 100
func flatCandles(n int) []*models.Candle {
	candles := make([]*models.Candle, n)
	for i := range candles {
		candles[i] = &models.Candle{Open: 100, High: 101, Low: 99, Close: 100, Volume: 10, TakerBuyBase: 5}
	}
	return candles
}

func newTestEngine(market *fakeMarket) *Engine {
	e := NewEngine(market, config.Default().Analysis)
	e.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestRecommendScalpLong(t *testing.T) {
	market := &fakeMarket{
		candles:      flatCandles(50),
		deltaCandles: []*models.Candle{{Volume: 50, TakerBuyBase: 0}},
		funding:      -0.001,
		oi:           12345,
	}

	rec := newTestEngine(market).Recommend(context.Background(), "BTCUSDT", "15m")

	require.False(t, rec.Failed(), rec.Error)
	assert.Equal(t, "BTCUSDT", rec.Symbol)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), rec.Timestamp)
	assert.Equal(t, 100.0, rec.Price)
	assert.InDelta(t, 2, rec.ATR, 1e-9)
	assert.InDelta(t, 0.02, rec.ATRPercent, 1e-9)
	assert.Equal(t, -0.001, rec.Funding)
	assert.Equal(t, 12345.0, rec.OpenInterest)
	require.NotNil(t, rec.CVD)
	assert.Equal(t, -50.0, *rec.CVD)

	assert.Equal(t, models.SignalScalpLong, rec.Signal)
	require.NotNil(t, rec.Levels)
	assert.InDelta(t, 105, rec.Levels.TakeProfit, 1e-9)
	assert.InDelta(t, 97, rec.Levels.StopLoss, 1e-9)
	assert.Equal(t, 1.67, *rec.Levels.RiskReward)

	assert.Equal(t, []string{"15m", "1m"}, market.requests)
}

func TestRecommendDeadZone(t *testing.T) {
	market := &fakeMarket{
		candles:      flatCandles(50),
		deltaCandles: []*models.Candle{{Volume: 50, TakerBuyBase: 0}},
		funding:      0.0001,
	}

	rec := newTestEngine(market).Recommend(context.Background(), "BTCUSDT", "15m")

	require.False(t, rec.Failed())
	assert.Equal(t, models.SignalWait, rec.Signal)
	assert.Nil(t, rec.Levels)
}

func TestRecommendFundingBoundariesWait(t *testing.T) {
	for _, rate := range []float64{-0.0005, 0.0005} {
		for _, cvd := range []float64{-50, 50} {
			market := &fakeMarket{
				candles:      flatCandles(50),
				deltaCandles: []*models.Candle{{Volume: 50, TakerBuyBase: (50 + cvd) / 2}},
				funding:      rate,
			}

			rec := newTestEngine(market).Recommend(context.Background(), "BTCUSDT", "15m")

			require.False(t, rec.Failed())
			assert.Equal(t, models.SignalWait, rec.Signal, "funding=%v cvd=%v", rate, cvd)
		}
	}
}

func TestRecommendUsesConfiguredFundingThreshold(t *testing.T) {
	cfg := config.Default().Analysis
	cfg.Signal.FundingThreshold = 0.002
	market := &fakeMarket{
		candles:      flatCandles(50),
		deltaCandles: []*models.Candle{{Volume: 50, TakerBuyBase: 0}},
		funding:      -0.001,
	}

	rec := NewEngine(market, cfg).Recommend(context.Background(), "BTCUSDT", "15m")
	require.False(t, rec.Failed())
	assert.Equal(t, models.SignalWait, rec.Signal)

	cfg.Signal.FundingThreshold = 0.0005
	rec = NewEngine(market, cfg).Recommend(context.Background(), "BTCUSDT", "15m")
	assert.Equal(t, models.SignalScalpLong, rec.Signal)
}

func TestRecommendWithoutDelta(t *testing.T) {
	market := &fakeMarket{
		candles:  flatCandles(50),
		deltaErr: errors.New("429"),
		funding:  -0.002,
	}

	rec := newTestEngine(market).Recommend(context.Background(), "ETHUSDT", "5m")

	require.False(t, rec.Failed())
	assert.Nil(t, rec.CVD)
	assert.Equal(t, models.SignalWait, rec.Signal)
	assert.Equal(t, reasonNoDelta, rec.Reason)
}

func TestRecommendErrorRecords(t *testing.T) {
	cases := map[string]*fakeMarket{
		"candles": {candlesErr: errors.New("boom")},
		"empty":   {},
		"funding": {candles: flatCandles(5), fundingErr: errors.New("boom")},
		"oi":      {candles: flatCandles(5), oiErr: errors.New("boom")},
	}

	for name, market := range cases {
		t.Run(name, func(t *testing.T) {
			rec := newTestEngine(market).Recommend(context.Background(), "SOLUSDT", "15m")

			assert.True(t, rec.Failed())
			assert.Equal(t, "SOLUSDT", rec.Symbol)
			assert.NotEmpty(t, rec.Error)
			assert.Zero(t, rec.Price)
			assert.Zero(t, rec.ATR)
			assert.Nil(t, rec.CVD)
			assert.Nil(t, rec.Levels)
			assert.Empty(t, rec.Signal)
		})
	}
}

package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/skalibog/bfsa/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeBinance поднимает сервер с ответами эндпоинтов USDT-M Futures
func newFakeBinance(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *BinanceClient {
	t.Helper()
	cfg := config.Default().Binance
	cfg.BaseURL = baseURL
	cfg.RequestSpacingMS = 0
	cfg.BackoffMinMS = 1
	cfg.BackoffMaxMS = 2
	client, err := NewBinanceClient(cfg)
	require.NoError(t, err)
	return client
}

func TestGetKlinesParsesTakerBuyVolume(t *testing.T) {
	srv := newFakeBinance(t, map[string]string{
		"/fapi/v1/klines": `[
			[1700000000000,"100.0","105.0","99.0","104.0","1000.0",1700000059999,"104000.0",50,"600.0","62400.0","0"],
			[1700000060000,"104.0","106.0","103.0","105.5","800.0",1700000119999,"84000.0",40,"300.0","31500.0","0"]
		]`,
	})
	client := newTestClient(t, srv.URL)

	candles, err := client.GetKlines(context.Background(), "BTCUSDT", "1m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	first := candles[0]
	assert.Equal(t, "BTCUSDT", first.Symbol)
	assert.Equal(t, "1m", first.Interval)
	assert.Equal(t, int64(1700000000000), first.OpenTime.UnixMilli())
	assert.Equal(t, 105.0, first.High)
	assert.Equal(t, 99.0, first.Low)
	assert.Equal(t, 104.0, first.Close)
	assert.Equal(t, 1000.0, first.Volume)
	assert.Equal(t, 600.0, first.TakerBuyBase)
	assert.Equal(t, 105.5, candles[1].Close)
}

func TestGetKlinesRejectsMalformedNumbers(t *testing.T) {
	srv := newFakeBinance(t, map[string]string{
		"/fapi/v1/klines": `[[1700000000000,"abc","105.0","99.0","104.0","1000.0",1700000059999,"0",1,"1","1","0"]]`,
	})
	client := newTestClient(t, srv.URL)

	_, err := client.GetKlines(context.Background(), "BTCUSDT", "1m", 1)
	assert.ErrorContains(t, err, "open")
}

func TestGetTicker24hSkipsMalformed(t *testing.T) {
	srv := newFakeBinance(t, map[string]string{
		"/fapi/v1/ticker/24hr": `[
			{"symbol":"BTCUSDT","priceChangePercent":"-2.5","volume":"1200.5"},
			{"symbol":"BROKENUSDT","priceChangePercent":"","volume":"1"},
			{"symbol":"ETHUSDT","priceChangePercent":"4.1","volume":"9000"}
		]`,
	})
	client := newTestClient(t, srv.URL)

	tickers, err := client.GetTicker24h(context.Background())
	require.NoError(t, err)
	require.Len(t, tickers, 2)
	assert.Equal(t, "BTCUSDT", tickers[0].Symbol)
	assert.Equal(t, -2.5, tickers[0].PriceChangePercent)
	assert.Equal(t, 1200.5, tickers[0].Volume)
	assert.Equal(t, "ETHUSDT", tickers[1].Symbol)
}

func TestGetTicker24hEmpty(t *testing.T) {
	srv := newFakeBinance(t, map[string]string{"/fapi/v1/ticker/24hr": `[]`})
	client := newTestClient(t, srv.URL)

	_, err := client.GetTicker24h(context.Background())
	assert.ErrorIs(t, err, ErrEmptyTicker)
}

func TestGetFundingRate(t *testing.T) {
	srv := newFakeBinance(t, map[string]string{
		"/fapi/v1/fundingRate": `[{"symbol":"BTCUSDT","fundingRate":"-0.00100000","fundingTime":1700000000000}]`,
	})
	client := newTestClient(t, srv.URL)

	rate, err := client.GetFundingRate(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, -0.001, rate)
}

func TestGetFundingRateEmptyHistoryIsZero(t *testing.T) {
	srv := newFakeBinance(t, map[string]string{"/fapi/v1/fundingRate": `[]`})
	client := newTestClient(t, srv.URL)

	rate, err := client.GetFundingRate(context.Background(), "NEWUSDT")
	require.NoError(t, err)
	assert.Zero(t, rate)
}

func TestGetOpenInterest(t *testing.T) {
	srv := newFakeBinance(t, map[string]string{
		"/fapi/v1/openInterest": `{"openInterest":"10659.509","symbol":"BTCUSDT","time":1700000000000}`,
	})
	client := newTestClient(t, srv.URL)

	oi, err := client.GetOpenInterest(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 10659.509, oi)
}

func TestProviderErrorIsReturned(t *testing.T) {
	srv := newFakeBinance(t, map[string]string{})
	client := newTestClient(t, srv.URL)

	_, err := client.GetOpenInterest(context.Background(), "NOPEUSDT")
	assert.ErrorContains(t, err, "NOPEUSDT")
}

func TestClientRetriesThrottledRequests(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":-1003,"msg":"Too many requests"}`))
			return
		}
		_, _ = w.Write([]byte(`{"openInterest":"5","symbol":"ETHUSDT","time":1700000000000}`))
	}))
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	oi, err := client.GetOpenInterest(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 5.0, oi)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/skalibog/bfsa/internal/config"
	"github.com/skalibog/bfsa/pkg/logger"
	"github.com/skalibog/bfsa/pkg/models"
	"go.uber.org/zap"
)

// ErrEmptyTicker возвращается, если биржа не вернула ни одной 24-часовой статистики
var ErrEmptyTicker = errors.New("пустой список тикеров")

// BinanceClient клиент для взаимодействия с Binance USDT-M Futures
type BinanceClient struct {
	futures *futures.Client
}

// NewBinanceClient создает новый клиент Binance Futures с очередью запросов
func NewBinanceClient(cfg config.BinanceConfig) (*BinanceClient, error) {
	// Флаг testnet читается go-binance при создании клиента
	futures.UseTestnet = cfg.Testnet
	futuresClient := futures.NewClient(cfg.APIKey, cfg.APISecret)

	if cfg.BaseURL != "" {
		futuresClient.BaseURL = cfg.BaseURL
	}

	// Таймаут клиента покрывает все повторы одного запроса
	futuresClient.HTTPClient = &http.Client{
		Timeout: cfg.Timeout() * time.Duration(cfg.MaxRetries+1),
		Transport: NewThrottledTransport(http.DefaultTransport, ThrottleConfig{
			Spacing:    cfg.RequestSpacing(),
			MaxRetries: cfg.MaxRetries,
			BackoffMin: time.Duration(cfg.BackoffMinMS) * time.Millisecond,
			BackoffMax: time.Duration(cfg.BackoffMaxMS) * time.Millisecond,
		}),
	}

	logger.Debug("Создан клиент Binance Futures",
		zap.String("base_url", futuresClient.BaseURL),
		zap.Bool("testnet", cfg.Testnet))

	return &BinanceClient{
		futures: futuresClient,
	}, nil
}

// GetKlines получает свечи от старой к новой
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	klines, err := c.futures.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей %s %s: %w", symbol, interval, err)
	}

	candles := make([]*models.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := parseKline(symbol, interval, k)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора свечи %s: %w", symbol, err)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// GetTicker24h получает 24-часовую статистику по всем парам
func (c *BinanceClient) GetTicker24h(ctx context.Context) ([]models.MarketTicker, error) {
	stats, err := c.futures.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения 24h статистики: %w", err)
	}
	if len(stats) == 0 {
		return nil, ErrEmptyTicker
	}

	tickers := make([]models.MarketTicker, 0, len(stats))
	for _, s := range stats {
		change, err1 := strconv.ParseFloat(s.PriceChangePercent, 64)
		volume, err2 := strconv.ParseFloat(s.Volume, 64)
		if err1 != nil || err2 != nil {
			logger.Debug("Пропущен тикер с некорректными данными", zap.String("symbol", s.Symbol))
			continue
		}
		tickers = append(tickers, models.MarketTicker{
			Symbol:             s.Symbol,
			PriceChangePercent: change,
			Volume:             volume,
		})
	}

	if len(tickers) == 0 {
		return nil, ErrEmptyTicker
	}
	return tickers, nil
}

// GetFundingRate получает последнюю ставку финансирования (0, если истории нет)
func (c *BinanceClient) GetFundingRate(ctx context.Context, symbol string) (float64, error) {
	rates, err := c.futures.NewFundingRateService().
		Symbol(symbol).
		Limit(1).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения ставки финансирования %s: %w", symbol, err)
	}

	if len(rates) == 0 {
		return 0, nil
	}

	rate, err := strconv.ParseFloat(rates[len(rates)-1].FundingRate, 64)
	if err != nil {
		return 0, fmt.Errorf("ошибка разбора ставки финансирования %s: %w", symbol, err)
	}
	return rate, nil
}

// GetOpenInterest получает текущий открытый интерес
func (c *BinanceClient) GetOpenInterest(ctx context.Context, symbol string) (float64, error) {
	oi, err := c.futures.NewGetOpenInterestService().
		Symbol(symbol).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения открытого интереса %s: %w", symbol, err)
	}

	value, err := strconv.ParseFloat(oi.OpenInterest, 64)
	if err != nil {
		return 0, fmt.Errorf("ошибка разбора открытого интереса %s: %w", symbol, err)
	}
	return value, nil
}

// parseKline конвертирует строковые поля свечи в числа
func parseKline(symbol, interval string, k *futures.Kline) (*models.Candle, error) {
	var parseErr error
	parse := func(name, value string) float64 {
		if parseErr != nil {
			return 0
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			parseErr = fmt.Errorf("поле %s=%q: %w", name, value, err)
		}
		return v
	}

	candle := &models.Candle{
		Symbol:       symbol,
		Interval:     interval,
		OpenTime:     time.UnixMilli(k.OpenTime),
		Open:         parse("open", k.Open),
		High:         parse("high", k.High),
		Low:          parse("low", k.Low),
		Close:        parse("close", k.Close),
		Volume:       parse("volume", k.Volume),
		TakerBuyBase: parse("taker_buy_base", k.TakerBuyBaseAssetVolume),
		CloseTime:    time.UnixMilli(k.CloseTime),
	}
	if parseErr != nil {
		return nil, parseErr
	}

	return candle, nil
}

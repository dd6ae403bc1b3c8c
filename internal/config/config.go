package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance  BinanceConfig  `yaml:"binance"`
	Trading  TradingConfig  `yaml:"trading"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Notify   NotifyConfig   `yaml:"notify"`
	Storage  StorageConfig  `yaml:"storage"`
	UI       UIConfig       `yaml:"ui"`
	Log      LogConfig      `yaml:"log"`

	// Warnings некритичные замечания загрузки. Load вызывается до настройки
	// логгера, поэтому их выводит вызывающий код.
	Warnings []string `yaml:"-"`
}

// BinanceConfig содержит настройки подключения к Binance Futures
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
	// BaseURL переопределяет адрес REST API (пусто - адрес по умолчанию)
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	// RequestSpacingMS минимальный интервал между запросами к одному эндпоинту
	RequestSpacingMS int `yaml:"request_spacing_ms" validate:"gte=0"`
	MaxRetries       int `yaml:"max_retries" validate:"gte=0,lte=10"`
	BackoffMinMS     int `yaml:"backoff_min_ms" validate:"gte=0"`
	BackoffMaxMS     int `yaml:"backoff_max_ms" validate:"gtefield=BackoffMinMS"`
	TimeoutSeconds   int `yaml:"timeout_seconds" validate:"gte=1"`
}

// TradingConfig содержит настройки отбора пар
type TradingConfig struct {
	TopN            int      `yaml:"top_n" validate:"gte=0,lte=100"`
	Timeframe       string   `yaml:"timeframe" validate:"oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 8h 12h 1d"`
	QuoteSuffix     string   `yaml:"quote_suffix" validate:"required"`
	PerpetualMarker string   `yaml:"perpetual_marker"`
	Denylist        []string `yaml:"denylist"`
	FallbackSymbols []string `yaml:"fallback_symbols" validate:"min=1,dive,required"`
}

// AnalysisConfig содержит настройки цикла анализа
type AnalysisConfig struct {
	IntervalSeconds int          `yaml:"interval_seconds" validate:"gte=1"`
	Workers         int          `yaml:"workers" validate:"gte=1,lte=32"`
	CandleLimit     int          `yaml:"candle_limit" validate:"gte=2,lte=1500"`
	ATRPeriod       int          `yaml:"atr_period" validate:"gte=1"`
	CVDMinutes      int          `yaml:"cvd_minutes" validate:"gte=1,lte=1500"`
	Signal          SignalConfig `yaml:"signal"`
}

// SignalConfig пороги и множители правила рекомендаций
type SignalConfig struct {
	FundingThreshold float64 `yaml:"funding_threshold" validate:"gte=0"`
	TPMultiplier     float64 `yaml:"tp_multiplier" validate:"gt=0"`
	TPMin            float64 `yaml:"tp_min" validate:"gt=0"`
	TPMax            float64 `yaml:"tp_max" validate:"gtefield=TPMin"`
	SLMultiplier     float64 `yaml:"sl_multiplier" validate:"gt=0"`
	SLMin            float64 `yaml:"sl_min" validate:"gt=0"`
	SLMax            float64 `yaml:"sl_max" validate:"gtefield=SLMin,lt=1"`
	// HighVolatility порог atr_pct, выше которого ожидание помечается как высокая волатильность
	HighVolatility float64 `yaml:"high_volatility" validate:"gte=0"`
}

// NotifyConfig настройки Telegram уведомлений
type NotifyConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BotToken       string `yaml:"bot_token" validate:"required_if=Enabled true"`
	ChatID         string `yaml:"chat_id" validate:"required_if=Enabled true"`
	APIURL         string `yaml:"api_url" validate:"required,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=1"`
}

// StorageConfig настройки хранения метрик
type StorageConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url" validate:"required_if=Enabled true"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization" validate:"required_if=Enabled true"`
	Bucket       string `yaml:"bucket" validate:"required_if=Enabled true"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	Enabled     bool `yaml:"enabled"`
	RefreshRate int  `yaml:"refresh_rate_ms" validate:"gte=0"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		Binance: BinanceConfig{
			RequestSpacingMS: 200,
			MaxRetries:       3,
			BackoffMinMS:     500,
			BackoffMaxMS:     8000,
			TimeoutSeconds:   10,
		},
		Trading: TradingConfig{
			TopN:            10,
			Timeframe:       "15m",
			QuoteSuffix:     "USDT",
			PerpetualMarker: "PERP",
			Denylist:        []string{"COCOSUSDT", "BEAMUSDT"},
			FallbackSymbols: []string{
				"BTCUSDT", "ETHUSDT", "BNBUSDT", "XRPUSDT", "SOLUSDT",
				"ADAUSDT", "DOGEUSDT", "AVAXUSDT", "DOTUSDT", "MATICUSDT",
			},
		},
		Analysis: AnalysisConfig{
			IntervalSeconds: 60,
			Workers:         4,
			CandleLimit:     50,
			ATRPeriod:       14,
			CVDMinutes:      60,
			Signal:          DefaultSignal(),
		},
		Notify: NotifyConfig{
			APIURL:         "https://api.telegram.org",
			TimeoutSeconds: 10,
		},
		UI: UIConfig{
			Enabled:     true,
			RefreshRate: 500,
		},
		Log: LogConfig{
			Dir:   ".",
			Level: "info",
		},
	}
}

// DefaultSignal возвращает пороги правила рекомендаций по умолчанию
func DefaultSignal() SignalConfig {
	return SignalConfig{
		FundingThreshold: 0.0005,
		TPMultiplier:     5,
		TPMin:            0.01,
		TPMax:            0.05,
		SLMultiplier:     3,
		SLMin:            0.01,
		SLMax:            0.03,
		HighVolatility:   0.03,
	}
}

// Load загружает конфигурацию из файла, .env и переменных окружения
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		cfg.Warnings = append(cfg.Warnings,
			fmt.Sprintf("файл конфигурации %s не найден, используются значения по умолчанию", path))
	default:
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ошибка загрузки .env: %v", err))
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет значения конфигурации
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("некорректная конфигурация: %w", err)
	}
	return nil
}

// applyEnv переопределяет значения из переменных окружения
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("BINANCE_API_KEY"); ok {
		c.Binance.APIKey = v
	}
	if v, ok := lookup("BINANCE_API_SECRET"); ok {
		c.Binance.APISecret = v
	}
	if v, ok := lookup("TG_BOT_TOKEN"); ok {
		c.Notify.BotToken = v
	}
	if v, ok := lookup("TG_CHAT_ID"); ok {
		c.Notify.ChatID = v
	}
	if v, ok := lookup("TIMEFRAME"); ok {
		c.Trading.Timeframe = v
	}
	if v, ok := lookup("PAIR_DENYLIST"); ok {
		c.Trading.Denylist = splitList(v)
	}
	if v, ok := lookup("FALLBACK_SYMBOLS"); ok {
		c.Trading.FallbackSymbols = splitList(v)
	}
	if v, ok := lookup("INFLUX_TOKEN"); ok {
		c.Storage.Token = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"TOP_N", &c.Trading.TopN},
		{"REFRESH_SECONDS", &c.Analysis.IntervalSeconds},
	}
	for _, item := range ints {
		v, ok := lookup(item.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ошибка разбора %s=%q: %w", item.key, v, err)
		}
		*item.dst = n
	}

	// Уведомления включаются, если заданы оба параметра Telegram
	if c.Notify.BotToken != "" && c.Notify.ChatID != "" {
		c.Notify.Enabled = true
	}

	return nil
}

// Interval возвращает период опроса
func (c AnalysisConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RequestSpacing возвращает минимальный интервал между запросами
func (c BinanceConfig) RequestSpacing() time.Duration {
	return time.Duration(c.RequestSpacingMS) * time.Millisecond
}

// Timeout возвращает таймаут HTTP запроса
func (c BinanceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

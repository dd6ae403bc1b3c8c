package exchange

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/skalibog/bfsa/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// retryableStatus коды ответа, после которых запрос повторяется.
// 418 Binance возвращает при повторном нарушении лимитов после 429.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusTeapot:              true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// ThrottleConfig параметры очереди исходящих запросов
type ThrottleConfig struct {
	// Spacing минимальный интервал между запросами к одному эндпоинту
	Spacing    time.Duration
	MaxRetries int
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// throttledTransport выдерживает интервал между запросами к одному пути
// и повторяет запросы, отклоненные из-за лимитов
type throttledTransport struct {
	base     http.RoundTripper
	config   ThrottleConfig
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewThrottledTransport оборачивает base очередью запросов с лимитом и повторами
func NewThrottledTransport(base http.RoundTripper, cfg ThrottleConfig) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &throttledTransport{
		base:     base,
		config:   cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiter возвращает ограничитель для пути эндпоинта
func (t *throttledTransport) limiter(path string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.limiters[path]
	if !ok {
		limit := rate.Inf
		if t.config.Spacing > 0 {
			limit = rate.Every(t.config.Spacing)
		}
		l = rate.NewLimiter(limit, 1)
		t.limiters[path] = l
	}
	return l
}

// RoundTrip выполняет запрос с соблюдением интервала и повторами
func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	limiter := t.limiter(req.URL.Path)
	b := &backoff.Backoff{
		Min:    t.config.BackoffMin,
		Max:    t.config.BackoffMax,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 0; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		if attempt > 0 && req.Body != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}

		resp, err := t.base.RoundTrip(req)
		if !t.shouldRetry(req, resp, err, attempt) {
			return resp, err
		}

		wait := b.Duration()
		if resp != nil {
			if ra := retryAfter(resp); ra > wait {
				wait = ra
			}
			// Retry-After не может растянуть ожидание дальше верхней границы backoff
			if limit := t.config.BackoffMax; limit > 0 && wait > limit {
				wait = limit
			}
			// Тело отклоненного ответа не нужно, соединение возвращается в пул
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		logger.Warn("Повтор запроса к бирже",
			zap.String("path", req.URL.Path),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Int("status", statusOf(resp)),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// shouldRetry решает, нужен ли повтор запроса
func (t *throttledTransport) shouldRetry(req *http.Request, resp *http.Response, err error, attempt int) bool {
	if attempt >= t.config.MaxRetries {
		return false
	}
	if req.Body != nil && req.GetBody == nil {
		return false
	}
	if req.Context().Err() != nil {
		return false
	}
	if err != nil {
		var netErr net.Error
		return errors.As(err, &netErr) && netErr.Timeout()
	}
	return retryableStatus[resp.StatusCode]
}

// retryAfter читает заголовок Retry-After в секундах
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

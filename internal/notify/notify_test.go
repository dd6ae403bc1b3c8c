package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/skalibog/bfsa/internal/config"
	"github.com/skalibog/bfsa/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	path, contentType, chatID, text, parseMode string
}

type fakeBotAPI struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeBotAPI) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func newFakeBotAPI(t *testing.T, status int, body string) (*httptest.Server, *fakeBotAPI) {
	t.Helper()
	api := &fakeBotAPI{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		api.mu.Lock()
		api.sent = append(api.sent, sentMessage{
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			chatID:      r.PostForm.Get("chat_id"),
			text:        r.PostForm.Get("text"),
			parseMode:   r.PostForm.Get("parse_mode"),
		})
		api.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, api
}

func newTestTelegram(url string) *Telegram {
	return NewTelegram(config.NotifyConfig{
		Enabled:        true,
		BotToken:       "123:abc",
		ChatID:         "42",
		APIURL:         url + "/",
		TimeoutSeconds: 2,
	})
}

func TestNotifySendsMessage(t *testing.T) {
	srv, api := newFakeBotAPI(t, http.StatusOK, `{"ok":true,"result":{"message_id":1}}`)

	ok := newTestTelegram(srv.URL).Notify(context.Background(), "*SCALP LONG* `BTCUSDT`")

	assert.True(t, ok)
	sent := api.messages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "/bot123:abc/sendMessage", msg.path)
	assert.Equal(t, "application/x-www-form-urlencoded", msg.contentType)
	assert.Equal(t, "42", msg.chatID)
	assert.Equal(t, "*SCALP LONG* `BTCUSDT`", msg.text)
	assert.Equal(t, "Markdown", msg.parseMode)
}

func TestNotifyRejected(t *testing.T) {
	srv, _ := newFakeBotAPI(t, http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)

	assert.False(t, newTestTelegram(srv.URL).Notify(context.Background(), "text"))
}

func TestNotifyServerError(t *testing.T) {
	srv, _ := newFakeBotAPI(t, http.StatusBadGateway, `<html>bad gateway</html>`)

	assert.False(t, newTestTelegram(srv.URL).Notify(context.Background(), "text"))
}

func TestNotifyUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.False(t, newTestTelegram(url).Notify(context.Background(), "text"))
}

func TestNotifyCanceledContext(t *testing.T) {
	srv, api := newFakeBotAPI(t, http.StatusOK, `{"ok":true}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, newTestTelegram(srv.URL).Notify(ctx, "text"))
	assert.Empty(t, api.messages())
}

func TestFormatSignal(t *testing.T) {
	rr := 1.67
	rec := &models.Recommendation{
		Symbol:     "BTCUSDT",
		Timestamp:  time.Now(),
		Price:      100,
		Funding:    -0.001,
		ATRPercent: 0.02,
		Signal:     models.SignalScalpLong,
		Reason:     "шорт-сквиз",
		Levels: &models.TradeLevels{
			Entry:      100,
			TakeProfit: 105,
			StopLoss:   97,
			RiskReward: &rr,
		},
	}

	text := FormatSignal(rec)

	assert.Contains(t, text, "*SCALP LONG* `BTCUSDT`")
	assert.Contains(t, text, "Вход: 100.0000")
	assert.Contains(t, text, "TP: 105.0000")
	assert.Contains(t, text, "SL: 97.0000")
	assert.Contains(t, text, "RRR: 1.67")
	assert.Contains(t, text, "ATR: 2.00%")
	assert.Contains(t, text, "Фандинг: -0.1000%")
	assert.Contains(t, text, "Причина: шорт-сквиз")
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "64250.50", FormatPrice(64250.5))
	assert.Equal(t, "1.2346", FormatPrice(1.23456))
	assert.Equal(t, "0.00001235", FormatPrice(0.0000123456))
	assert.Equal(t, "0.00", FormatPrice(0))
	assert.Equal(t, "-", FormatRatio(nil))
}

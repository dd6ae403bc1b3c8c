package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/skalibog/bfsa/internal/config"
	"github.com/skalibog/bfsa/pkg/logger"
	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Telegram отправляет сообщения через Telegram Bot API
type Telegram struct {
	client  *fasthttp.Client
	baseURL string
	token   string
	chatID  string
	timeout time.Duration
}

// NewTelegram создает клиент уведомлений Telegram
func NewTelegram(cfg config.NotifyConfig) *Telegram {
	return &Telegram{
		client:  &fasthttp.Client{Name: "bfsa"},
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// Notify отправляет сообщение в Markdown. Ошибка доставки не критична:
// она записывается в лог, а вызывающий получает false.
func (t *Telegram) Notify(ctx context.Context, text string) bool {
	if err := t.send(ctx, text); err != nil {
		logger.Warn("Не удалось отправить уведомление Telegram", zap.Error(err))
		return false
	}

	logger.Debug("Уведомление Telegram отправлено", zap.Int("length", len(text)))
	return true
}

func (t *Telegram) send(ctx context.Context, text string) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	args := req.PostArgs()
	args.Set("chat_id", t.chatID)
	args.Set("text", text)
	args.Set("parse_mode", "Markdown")

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := t.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("ошибка запроса sendMessage: %w", err)
	}

	body := resp.Body()
	if !gjson.GetBytes(body, "ok").Bool() {
		description := gjson.GetBytes(body, "description").String()
		if description == "" {
			description = string(body)
		}
		return fmt.Errorf("telegram ответил %d: %s", resp.StatusCode(), description)
	}

	return nil
}

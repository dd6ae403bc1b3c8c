package notify

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/skalibog/bfsa/pkg/models"
)

// FormatSignal формирует текст уведомления о новом сигнале (Markdown)
func FormatSignal(rec *models.Recommendation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*%s* `%s`\n", rec.Signal, rec.Symbol)
	fmt.Fprintf(&b, "Цена: %s\n", FormatPrice(rec.Price))
	if lv := rec.Levels; lv != nil {
		fmt.Fprintf(&b, "Вход: %s\n", FormatPrice(lv.Entry))
		fmt.Fprintf(&b, "TP: %s\n", FormatPrice(lv.TakeProfit))
		fmt.Fprintf(&b, "SL: %s\n", FormatPrice(lv.StopLoss))
		fmt.Fprintf(&b, "RRR: %s\n", FormatRatio(lv.RiskReward))
	}
	fmt.Fprintf(&b, "ATR: %s%%\n", decimal.NewFromFloat(rec.ATRPercent*100).StringFixed(2))
	fmt.Fprintf(&b, "Фандинг: %s%%\n", decimal.NewFromFloat(rec.Funding*100).StringFixed(4))
	fmt.Fprintf(&b, "Причина: %s", rec.Reason)

	return b.String()
}

// FormatTest текст проверочного сообщения
func FormatTest() string {
	return "*BFSA*: проверка связи с Telegram"
}

// FormatPrice форматирует цену с точностью, зависящей от ее порядка
func FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(priceDecimals(price))
}

// FormatRatio форматирует RRR, "-" если значения нет
func FormatRatio(rr *float64) string {
	if rr == nil {
		return "-"
	}
	return decimal.NewFromFloat(*rr).StringFixed(2)
}

func priceDecimals(price float64) int32 {
	abs := math.Abs(price)
	switch {
	case abs >= 1000:
		return 2
	case abs >= 1:
		return 4
	case abs == 0:
		return 2
	default:
		return 8
	}
}

package recommendation

import (
	"github.com/shopspring/decimal"
	"github.com/skalibog/bfsa/internal/analysis/funding"
	"github.com/skalibog/bfsa/internal/config"
	"github.com/skalibog/bfsa/pkg/models"
)

const (
	reasonLong         = "Отрицательный фандинг и давление продаж: возможен шорт-сквиз"
	reasonShort        = "Положительный фандинг и давление покупок: возможен лонг-сквиз"
	reasonHighVol      = "Высокая волатильность, сетапа нет"
	reasonNoDelta      = "Дельта объемов недоступна, сетапа нет"
	reasonNoSetup      = "Сетапа нет"
	reasonNoPrice      = "Нет цены, уровни не рассчитываются"
	riskRewardDecimals = 2
)

// Inputs метрики пары, по которым принимается решение
type Inputs struct {
	Price      float64
	ATRPercent float64
	// Crowding перекос позиций по фандингу, см. funding.Classify
	Crowding funding.Crowding
	// CVD равен nil, если дельта недоступна
	CVD *float64
}

// Decision результат правила рекомендаций
type Decision struct {
	Signal models.SignalKind
	Reason string
	Levels *models.TradeLevels
}

// Decide применяет правило по порядку, срабатывает первое совпадение:
// шорты перегружены и идут продажи - SCALP LONG, лонги перегружены и идут покупки - SCALP SHORT,
// иначе WAIT. Без цены уровни не определены, поэтому нулевая цена всегда дает WAIT.
func Decide(in Inputs, cfg config.SignalConfig) Decision {
	if in.Price <= 0 {
		return Decision{Signal: models.SignalWait, Reason: reasonNoPrice}
	}

	switch {
	case in.Crowding == funding.CrowdingShorts && in.CVD != nil && *in.CVD < 0:
		return Decision{
			Signal: models.SignalScalpLong,
			Reason: reasonLong,
			Levels: Levels(models.SignalScalpLong, in.Price, in.ATRPercent, cfg),
		}
	case in.Crowding == funding.CrowdingLongs && in.CVD != nil && *in.CVD > 0:
		return Decision{
			Signal: models.SignalScalpShort,
			Reason: reasonShort,
			Levels: Levels(models.SignalScalpShort, in.Price, in.ATRPercent, cfg),
		}
	}

	reason := reasonNoSetup
	switch {
	case cfg.HighVolatility > 0 && in.ATRPercent > cfg.HighVolatility:
		reason = reasonHighVol
	case in.CVD == nil:
		reason = reasonNoDelta
	}
	return Decision{Signal: models.SignalWait, Reason: reason}
}

// Levels рассчитывает вход, цель и стоп. Расстояния пропорциональны ATR
// и ограничены снизу и сверху. Для WAIT и нулевой цены уровней нет.
func Levels(signal models.SignalKind, price, atrPct float64, cfg config.SignalConfig) *models.TradeLevels {
	if price <= 0 {
		return nil
	}

	tpOffset := Clamp(atrPct*cfg.TPMultiplier, cfg.TPMin, cfg.TPMax)
	slOffset := Clamp(atrPct*cfg.SLMultiplier, cfg.SLMin, cfg.SLMax)

	levels := &models.TradeLevels{Entry: price}
	switch signal {
	case models.SignalScalpLong:
		levels.TakeProfit = price * (1 + tpOffset)
		levels.StopLoss = price * (1 - slOffset)
	case models.SignalScalpShort:
		levels.TakeProfit = price * (1 - tpOffset)
		levels.StopLoss = price * (1 + slOffset)
	default:
		return nil
	}

	levels.RiskReward = RiskReward(signal, levels.Entry, levels.TakeProfit, levels.StopLoss)
	return levels
}

// RiskReward отношение потенциальной прибыли к убытку, округленное до сотых.
// nil, если убыток или цена входа равны нулю.
func RiskReward(signal models.SignalKind, entry, tp, sl float64) *float64 {
	if entry == 0 {
		return nil
	}

	var potential float64
	switch signal {
	case models.SignalScalpLong:
		potential = (tp - entry) / entry
	case models.SignalScalpShort:
		potential = (entry - tp) / entry
	default:
		return nil
	}

	loss := (sl - entry) / entry
	if loss < 0 {
		loss = -loss
	}
	if loss == 0 {
		return nil
	}

	rr, _ := decimal.NewFromFloat(potential / loss).Round(riskRewardDecimals).Float64()
	return &rr
}

// Clamp ограничивает x диапазоном [lo, hi]
func Clamp(x, lo, hi float64) float64 {
	if x > hi {
		x = hi
	}
	if x < lo {
		x = lo
	}
	return x
}

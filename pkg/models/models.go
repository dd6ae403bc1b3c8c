package models

import (
	"time"
)

// Candle представляет свечу фьючерсного контракта
type Candle struct {
	Symbol   string
	Interval string
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	// TakerBuyBase объем агрессивных покупок в базовом активе
	TakerBuyBase float64
	CloseTime    time.Time
}

// MarketTicker представляет 24-часовую статистику по паре
type MarketTicker struct {
	Symbol             string
	PriceChangePercent float64
	Volume             float64
}

// SignalKind тип торгового сигнала
type SignalKind string

const (
	SignalScalpLong  SignalKind = "SCALP LONG"
	SignalScalpShort SignalKind = "SCALP SHORT"
	SignalWait       SignalKind = "WAIT"
)

// Actionable сообщает, можно ли по сигналу открывать сделку
func (k SignalKind) Actionable() bool {
	return k == SignalScalpLong || k == SignalScalpShort
}

// TradeLevels уровни входа, цели и стопа для торгового сигнала
type TradeLevels struct {
	Entry      float64
	TakeProfit float64
	StopLoss   float64
	// RiskReward отсутствует, если потенциальный убыток равен нулю
	RiskReward *float64
}

// Recommendation представляет рекомендацию по одной паре за один цикл.
// Если Error не пуст, числовые поля не заполнены.
type Recommendation struct {
	Symbol       string
	Timestamp    time.Time
	Price        float64
	Funding      float64
	OpenInterest float64
	// CVD равен nil, если дельту объемов получить не удалось
	CVD        *float64
	ATR        float64
	ATRPercent float64
	Signal     SignalKind
	Reason     string
	// Levels заполнены только для SCALP LONG / SCALP SHORT
	Levels *TradeLevels
	Error  string
}

// Failed сообщает, что рекомендация является записью об ошибке
func (r *Recommendation) Failed() bool {
	return r.Error != ""
}

// NewErrorRecommendation создает запись об ошибке для символа
func NewErrorRecommendation(symbol string, err error, ts time.Time) *Recommendation {
	return &Recommendation{
		Symbol:    symbol,
		Timestamp: ts,
		Error:     err.Error(),
	}
}

package state

import (
	"sync"

	"github.com/skalibog/bfsa/pkg/models"
)

// Tracker хранит последний торговый сигнал по каждой паре в рамках сессии приложения.
// Сигналы WAIT не хранятся: они удаляют запись пары.
type Tracker struct {
	mu      sync.Mutex
	signals map[string]models.SignalKind
}

// NewTracker создает пустое хранилище сигналов
func NewTracker() *Tracker {
	return &Tracker{
		signals: make(map[string]models.SignalKind),
	}
}

// Update запоминает сигнал пары и сообщает, стоит ли о нем уведомлять:
// true только для SCALP LONG/SHORT, отличного от сохраненного
func (t *Tracker) Update(symbol string, signal models.SignalKind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !signal.Actionable() {
		delete(t.signals, symbol)
		return false
	}

	if prev, ok := t.signals[symbol]; ok && prev == signal {
		return false
	}

	t.signals[symbol] = signal
	return true
}

// Get возвращает сохраненный сигнал пары
func (t *Tracker) Get(symbol string) (models.SignalKind, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	signal, ok := t.signals[symbol]
	return signal, ok
}

// Snapshot возвращает копию всех сохраненных сигналов
func (t *Tracker) Snapshot() map[string]models.SignalKind {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]models.SignalKind, len(t.signals))
	for k, v := range t.signals {
		out[k] = v
	}
	return out
}

// Reset очищает все сохраненные сигналы
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.signals = make(map[string]models.SignalKind)
}

package ratebudget

import (
	"time"

	"github.com/cortexhub/llmgateway/internal/config"
)

// Snapshot captures the only non-reconstructable state of a Tracker —
// credit balances and their last-reset boundaries — per spec §4.1
// ("sliding-window samples are ephemeral").
type Snapshot struct {
	Credits map[config.Window]CreditSnapshot `json:"credits"`
}

// CreditSnapshot is one calendar window's persisted state.
type CreditSnapshot struct {
	Balance  float64   `json:"balance"`
	Boundary time.Time `json:"boundary"`
}

// Snapshot returns a copy of the tracker's persistable state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := Snapshot{Credits: make(map[config.Window]CreditSnapshot, len(t.calendar))}
	for window, cw := range t.calendar {
		out.Credits[window] = CreditSnapshot{Balance: cw.balance, Boundary: cw.boundary}
	}
	return out
}

// Restore applies a previously captured Snapshot. Windows present in the
// tracker but absent from the snapshot (e.g. a config change added a new
// window) keep their freshly constructed state.
func (t *Tracker) Restore(snap Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for window, cs := range snap.Credits {
		if cw, ok := t.calendar[window]; ok {
			cw.balance = cs.Balance
			cw.boundary = cs.Boundary
		}
	}
}

// Package account models the trading account a gateway owns. Exactly one
// gateway writes an Account; readers take snapshots and must not mutate them
// back.
package account

import (
	"math"
	"sync/atomic"

	"github.com/Indemos/Terminal-sub003/internal/instrument"
)

// Performance is the cumulative realized PnL cell. It is only ever moved by
// fill events, one atomic add per delivered event, and never recomputed from
// scratch.
type Performance struct {
	bits atomic.Uint64
}

// Add accrues one realized balance delta.
func (p *Performance) Add(delta float64) {
	for {
		old := p.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if p.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Value returns the current cumulative realized PnL.
func (p *Performance) Value() float64 {
	return math.Float64frombits(p.bits.Load())
}

// Account binds a descriptor and balance to the set of subscribed
// instruments. The instrument map is copy-on-write: the owning gateway
// replaces the whole map on every change so concurrent readers always see a
// consistent snapshot.
type Account struct {
	Descriptor  string
	Balance     float64
	Performance Performance

	instruments atomic.Pointer[map[string]*instrument.Instrument]
}

// New returns an account holding the given instruments, keyed by name.
func New(descriptor string, balance float64, instruments ...*instrument.Instrument) *Account {
	a := &Account{Descriptor: descriptor, Balance: balance}

	m := make(map[string]*instrument.Instrument, len(instruments))
	for _, ins := range instruments {
		m[ins.Name] = ins
	}
	a.instruments.Store(&m)
	return a
}

// Instruments returns the current snapshot keyed by name. Callers must treat
// the map as read-only.
func (a *Account) Instruments() map[string]*instrument.Instrument {
	return *a.instruments.Load()
}

// Instrument returns the named instrument, nil when the account does not
// hold it.
func (a *Account) Instrument(name string) *instrument.Instrument {
	return a.Instruments()[name]
}

// SetInstrument publishes a new snapshot with the instrument replaced
// wholesale. Only the owning gateway calls this.
func (a *Account) SetInstrument(ins *instrument.Instrument) {
	for {
		old := a.instruments.Load()
		next := make(map[string]*instrument.Instrument, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		next[ins.Name] = ins
		if a.instruments.CompareAndSwap(old, &next) {
			return
		}
	}
}

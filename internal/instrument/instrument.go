// Package instrument holds the immutable market-data values shared by every
// venue adapter: instruments, quotes and book snapshots. Values are replaced
// wholesale on update, never mutated in place, so concurrent readers can hold
// a snapshot without locking.
package instrument

import "time"

// Type distinguishes asset classes.
type Type string

const (
	TypeShares   Type = "SHARES"
	TypeOptions  Type = "OPTIONS"
	TypeFutures  Type = "FUTURES"
	TypeCurrency Type = "CURRENCY"
	TypeCrypto   Type = "CRYPTO"
)

// OptionSide denotes the derivative contract side.
type OptionSide string

const (
	OptionPut  OptionSide = "PUT"
	OptionCall OptionSide = "CALL"
)

// Derivative describes the contract terms of an option or future.
type Derivative struct {
	Strike     float64
	Side       OptionSide
	Expiration time.Time
	TradeDate  time.Time

	// Greeks reported by the venue, zero when not provided.
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
}

// Instrument is an immutable description of a tradable contract. Basis points
// at the underlying for derivatives and never points back, so the reference
// chain is acyclic by construction.
type Instrument struct {
	ID       string
	Name     string
	Exchange string
	Currency string
	Type     Type

	Commission   float64
	ContractSize float64 // ≥ 0, defaults to 1
	Leverage     float64 // ≥ 0, defaults to 1
	StepSize     float64 // minimum price increment, defaults to 0.01
	StepValue    float64 // value of one step, defaults to 0.01

	// TimeFrame is the aggregation period; nil means tick-level data.
	TimeFrame *time.Duration

	Basis      *Instrument
	Derivative *Derivative

	// Price is the latest quote snapshot. The owning gateway replaces the
	// whole Instrument value on update; readers never see a partial write.
	Price *Price
}

// New returns an instrument with contract economics defaulted.
func New(name string) *Instrument {
	return &Instrument{
		Name:         name,
		ContractSize: 1,
		Leverage:     1,
		StepSize:     0.01,
		StepValue:    0.01,
	}
}

// WithPrice returns a copy of the instrument carrying the given quote.
// The receiver is left untouched, keeping snapshots consistent for
// concurrent readers.
func (i *Instrument) WithPrice(p *Price) *Instrument {
	next := *i
	next.Price = p
	return &next
}

// Bar is the OHLC aggregate for one period.
type Bar struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Price is an immutable quote snapshot. A new value supersedes the previous
// one atomically; nothing mutates an existing Price.
type Price struct {
	Bid     float64
	Ask     float64
	BidSize float64
	AskSize float64
	Last    float64
	Volume  float64
	Time    time.Time
	Bar     *Bar

	// Instrument is a back-reference to the contract this quote belongs to.
	Instrument *Instrument
}

// Mid returns the quote midpoint.
func (p *Price) Mid() float64 {
	return (p.Bid + p.Ask) / 2
}

// Dom is a top-of-book/depth snapshot, best levels first.
type Dom struct {
	Bids []*Price
	Asks []*Price
}

// Package sim is an in-process venue adapter used for local development and
// tests: random-walk quotes, immediate fills for market orders, resting
// limit/stop orders crossed by the walk, and a realized-PnL fill feed with
// unique event IDs. It implements the whole gateway contract so the core can
// run end to end without a brokerage session.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Indemos/Terminal-sub003/internal/account"
	"github.com/Indemos/Terminal-sub003/internal/events"
	"github.com/Indemos/Terminal-sub003/internal/gateway"
	"github.com/Indemos/Terminal-sub003/internal/instrument"
	"github.com/Indemos/Terminal-sub003/internal/order"
)

var (
	ErrNotConnected      = errors.New("sim: not connected")
	ErrInstrumentUnknown = errors.New("sim: unknown instrument")
	ErrInstrumentNeeded  = errors.New("sim: criteria requires an instrument")
)

// Config tunes the simulated venue.
type Config struct {
	StartPrice float64       // initial mid, defaults to 100
	Spread     float64       // bid/ask distance, defaults to 0.02
	Step       float64       // max tick move, defaults to 0.5
	Interval   time.Duration // tick period, defaults to 250ms
	Balance    float64       // virtual account balance
	Seed       int64         // 0 means time-seeded
}

type position struct {
	amount   float64 // signed, long positive
	avgPrice float64
}

// Venue is the simulated backend. One Venue serves one gateway.
type Venue struct {
	cfg Config
	log *zap.Logger
	rng *rand.Rand

	mu         sync.Mutex
	connected  bool
	subscribed map[string]bool
	quotes     map[string]*instrument.Price
	contracts  map[string]*instrument.Instrument
	positions  map[string]*position
	working    []*order.Order
	history    []*order.Order

	events chan events.OrderEvent
	prices chan events.PriceEvent
	stop   context.CancelFunc
	done   chan struct{}
}

// New creates a venue quoting the given instruments.
func New(cfg Config, log *zap.Logger, instruments ...*instrument.Instrument) *Venue {
	if cfg.StartPrice == 0 {
		cfg.StartPrice = 100
	}
	if cfg.Spread == 0 {
		cfg.Spread = 0.02
	}
	if cfg.Step == 0 {
		cfg.Step = 0.5
	}
	if cfg.Interval == 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	v := &Venue{
		cfg:        cfg,
		log:        log.Named("sim"),
		rng:        rand.New(rand.NewSource(seed)),
		subscribed: make(map[string]bool),
		quotes:     make(map[string]*instrument.Price),
		contracts:  make(map[string]*instrument.Instrument),
		positions:  make(map[string]*position),
		events:     make(chan events.OrderEvent, 256),
		prices:     make(chan events.PriceEvent, 256),
	}

	for _, ins := range instruments {
		v.contracts[ins.Name] = ins
		v.quotes[ins.Name] = v.quote(ins, cfg.StartPrice, time.Now())
	}

	return v
}

// quote builds an immutable snapshot around a mid price.
func (v *Venue) quote(ins *instrument.Instrument, mid float64, ts time.Time) *instrument.Price {
	half := v.cfg.Spread / 2
	return &instrument.Price{
		Bid:        mid - half,
		Ask:        mid + half,
		BidSize:    float64(100 + v.rng.Intn(900)),
		AskSize:    float64(100 + v.rng.Intn(900)),
		Last:       mid,
		Volume:     float64(v.rng.Intn(10000)),
		Time:       ts,
		Instrument: ins,
	}
}

// Connect starts the quote walk.
func (v *Venue) Connect(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.connected {
		return nil
	}

	walkCtx, cancel := context.WithCancel(context.Background())
	v.stop = cancel
	v.done = make(chan struct{})
	v.connected = true

	go v.walk(walkCtx)
	return nil
}

// Disconnect stops the quote walk.
func (v *Venue) Disconnect(ctx context.Context) error {
	v.mu.Lock()
	if !v.connected {
		v.mu.Unlock()
		return nil
	}
	v.connected = false
	stop, done := v.stop, v.done
	v.mu.Unlock()

	stop()
	<-done
	return nil
}

// Subscribe enables data delivery for one instrument.
func (v *Venue) Subscribe(ctx context.Context, ins *instrument.Instrument) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.connected {
		return ErrNotConnected
	}
	if _, ok := v.contracts[ins.Name]; !ok {
		v.contracts[ins.Name] = ins
		v.quotes[ins.Name] = v.quote(ins, v.cfg.StartPrice, time.Now())
	}
	v.subscribed[ins.Name] = true
	// Push the current quote right away so the subscriber has a snapshot
	// before the next tick.
	v.emitPriceLocked(ins.Name)
	return nil
}

// Unsubscribe suspends data delivery for one instrument.
func (v *Venue) Unsubscribe(ctx context.Context, ins *instrument.Instrument) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.connected {
		return ErrNotConnected
	}
	delete(v.subscribed, ins.Name)
	return nil
}

// walk advances every quote by a bounded random step and crosses resting
// orders against the new prices.
func (v *Venue) walk(ctx context.Context) {
	defer close(v.done)
	ticker := time.NewTicker(v.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			v.tick(now)
		}
	}
}

func (v *Venue) tick(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for name, prev := range v.quotes {
		mid := prev.Mid() + (v.rng.Float64()*2-1)*v.cfg.Step
		if mid < v.cfg.Spread {
			mid = v.cfg.Spread
		}
		v.quotes[name] = v.quote(v.contracts[name], mid, now)
	}
	for name := range v.subscribed {
		v.emitPriceLocked(name)
	}
	v.crossLocked(now)
}

// emitPriceLocked streams the current quote to the feed without blocking.
func (v *Venue) emitPriceLocked(name string) {
	q := v.quotes[name]
	if q == nil {
		return
	}
	select {
	case v.prices <- events.PriceEvent{Instrument: name, Price: q}:
	default:
		v.log.Warn("quote dropped", zap.String("instrument", name))
	}
}

// crossLocked fills resting orders whose trigger the walk has reached.
func (v *Venue) crossLocked(now time.Time) {
	var still []*order.Order
	for _, o := range v.working {
		q := v.quotes[o.Instrument().Name]
		if q != nil && crossed(o, q) {
			v.fillLocked(o, q, now)
			continue
		}
		still = append(still, o)
	}
	v.working = still
}

func crossed(o *order.Order, q *instrument.Price) bool {
	if o.Price == nil {
		return false
	}
	price := *o.Price

	switch o.Type {
	case order.TypeLimit:
		if o.Side == order.SideLong {
			return q.Ask <= price
		}
		return q.Bid >= price
	case order.TypeStop, order.TypeStopLimit:
		if o.Side == order.SideLong {
			return q.Ask >= price
		}
		return q.Bid <= price
	}
	return false
}

// Submit accepts one composed leg. Market orders fill immediately at the
// current quote; priced orders rest until the walk crosses them.
func (v *Venue) Submit(ctx context.Context, o *order.Order) (*order.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.connected {
		return nil, ErrNotConnected
	}

	ins := o.Instrument()
	if ins == nil {
		return nil, fmt.Errorf("sim: order %s has no instrument", o.ID)
	}
	q, ok := v.quotes[ins.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentUnknown, ins.Name)
	}

	ack := o.Clone()
	ack.Operation.Status = order.StatusPlaced
	ack.Operation.Time = q.Time

	if o.Type == order.TypeMarket {
		v.fillLocked(ack, q, time.Now())
		return ack, nil
	}

	v.working = append(v.working, ack)
	v.emit(events.OrderEvent{
		ID:         uuid.NewString(),
		Descriptor: ack.Descriptor,
		Status:     order.StatusPlaced,
		Time:       time.Now(),
		Order:      ack,
	})
	return ack, nil
}

// fillLocked executes one leg against the book, books realized PnL into the
// fill event and emits it with a unique event ID.
func (v *Venue) fillLocked(o *order.Order, q *instrument.Price, now time.Time) {
	ins := o.Instrument()
	amount := 1.0
	if o.Amount != nil {
		amount = *o.Amount
	}

	price := q.Ask
	signed := amount
	if o.Side == order.SideShort {
		price = q.Bid
		signed = -amount
	}

	realized := v.book(ins, signed, price)
	realized -= ins.Commission

	o.Operation.Status = order.StatusFilled
	o.Operation.Amount = amount
	o.Operation.AveragePrice = price
	o.Operation.Time = now

	v.history = append(v.history, o)
	v.log.Debug("fill",
		zap.String("instrument", ins.Name),
		zap.Float64("price", price),
		zap.Float64("amount", signed),
		zap.Float64("realized", realized))

	v.emit(events.OrderEvent{
		ID:         uuid.NewString(),
		Descriptor: o.Descriptor,
		Status:     order.StatusTransaction,
		Balance:    realized,
		Time:       now,
		Order:      o,
	})
}

// book applies a signed fill to the position and returns the realized delta.
// Increasing a position re-averages the entry; reducing one realizes the
// difference against the average, scaled by contract economics.
func (v *Venue) book(ins *instrument.Instrument, signed, price float64) float64 {
	p, ok := v.positions[ins.Name]
	if !ok {
		p = &position{}
		v.positions[ins.Name] = p
	}

	size := ins.ContractSize
	if size == 0 {
		size = 1
	}

	var realized float64
	switch {
	case p.amount == 0 || sameSign(p.amount, signed):
		total := math.Abs(p.amount) + math.Abs(signed)
		p.avgPrice = (p.avgPrice*math.Abs(p.amount) + price*math.Abs(signed)) / total
		p.amount += signed
	default:
		closing := math.Min(math.Abs(signed), math.Abs(p.amount))
		direction := 1.0
		if p.amount < 0 {
			direction = -1
		}
		realized = (price - p.avgPrice) * closing * direction * size
		p.amount += signed
		if p.amount != 0 && !sameSign(p.amount, -signed) {
			// Flipped through zero: the remainder opens at the fill price.
			p.avgPrice = price
		}
	}

	if p.amount == 0 {
		p.avgPrice = 0
	}
	return realized
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

// Cancel removes a resting order.
func (v *Venue) Cancel(ctx context.Context, o *order.Order) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, w := range v.working {
		if w.ID == o.ID {
			v.working = append(v.working[:i], v.working[i+1:]...)
			w.Operation.Status = order.StatusCanceled
			v.emit(events.OrderEvent{
				ID:         uuid.NewString(),
				Descriptor: w.Descriptor,
				Status:     order.StatusCanceled,
				Time:       time.Now(),
				Order:      w,
			})
			return nil
		}
	}
	return fmt.Errorf("sim: order %s is not working", o.ID)
}

// Events returns the order/fill stream.
func (v *Venue) Events() <-chan events.OrderEvent { return v.events }

// Prices returns the quote stream for subscribed instruments.
func (v *Venue) Prices() <-chan events.PriceEvent { return v.prices }

func (v *Venue) emit(ev events.OrderEvent) {
	select {
	case v.events <- ev:
	default:
		v.log.Warn("event dropped", zap.String("event", ev.ID))
	}
}

// Account returns a snapshot of the virtual account.
func (v *Venue) Account(ctx context.Context) (*account.Account, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	instruments := make([]*instrument.Instrument, 0, len(v.contracts))
	for _, ins := range v.contracts {
		instruments = append(instruments, ins.WithPrice(v.quotes[ins.Name]))
	}
	return account.New("sim", v.cfg.Balance, instruments...), nil
}

// Dom builds a synthetic depth ladder around the current quote.
func (v *Venue) Dom(ctx context.Context, criteria gateway.Criteria) (*instrument.Dom, error) {
	q, err := v.currentQuote(criteria)
	if err != nil {
		return nil, err
	}

	depth := criteria.Count
	if depth <= 0 {
		depth = 5
	}

	dom := &instrument.Dom{}
	step := q.Instrument.StepSize
	if step == 0 {
		step = 0.01
	}
	for i := 0; i < depth; i++ {
		offset := float64(i) * step
		dom.Bids = append(dom.Bids, &instrument.Price{
			Bid: q.Bid - offset, Ask: q.Ask, BidSize: q.BidSize, Time: q.Time, Instrument: q.Instrument,
		})
		dom.Asks = append(dom.Asks, &instrument.Price{
			Bid: q.Bid, Ask: q.Ask + offset, AskSize: q.AskSize, Time: q.Time, Instrument: q.Instrument,
		})
	}
	return dom, nil
}

// Bars generates the aggregated history ending at the current quote.
func (v *Venue) Bars(ctx context.Context, criteria gateway.Criteria) ([]*instrument.Price, error) {
	return v.series(criteria, true)
}

// Ticks generates the tick history ending at the current quote.
func (v *Venue) Ticks(ctx context.Context, criteria gateway.Criteria) ([]*instrument.Price, error) {
	return v.series(criteria, false)
}

func (v *Venue) series(criteria gateway.Criteria, withBars bool) ([]*instrument.Price, error) {
	q, err := v.currentQuote(criteria)
	if err != nil {
		return nil, err
	}

	count := criteria.Count
	if count <= 0 {
		count = 100
	}

	frame := time.Minute
	if tf := q.Instrument.TimeFrame; tf != nil {
		frame = *tf
	}
	if !withBars {
		frame = time.Second
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Walk backwards from the live quote so the series ends at the present.
	out := make([]*instrument.Price, count)
	mid := q.Mid()
	ts := q.Time
	for i := count - 1; i >= 0; i-- {
		p := v.quote(q.Instrument, mid, ts)
		if withBars {
			high := mid + v.rng.Float64()*v.cfg.Step
			low := mid - v.rng.Float64()*v.cfg.Step
			p.Bar = &instrument.Bar{
				Open:  mid + (v.rng.Float64()*2-1)*v.cfg.Step/2,
				High:  high,
				Low:   low,
				Close: mid,
			}
		}
		out[i] = p
		mid += (v.rng.Float64()*2 - 1) * v.cfg.Step
		ts = ts.Add(-frame)
	}

	filtered := out[:0]
	for _, p := range out {
		if criteria.MatchDate(p.Time) && criteria.MatchPrice(p.Mid()) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// Options generates a synthetic chain of strikes around the spot price.
func (v *Venue) Options(ctx context.Context, criteria gateway.Criteria) ([]*instrument.Instrument, error) {
	q, err := v.currentQuote(criteria)
	if err != nil {
		return nil, err
	}

	basis := q.Instrument
	spot := q.Mid()
	expiration := time.Now().AddDate(0, 1, 0)
	if criteria.MaxDate != nil {
		expiration = *criteria.MaxDate
	}

	var out []*instrument.Instrument
	for offset := -2; offset <= 2; offset++ {
		strike := math.Round(spot) + float64(offset)
		for _, side := range []instrument.OptionSide{instrument.OptionPut, instrument.OptionCall} {
			contract := instrument.New(fmt.Sprintf("%s %s %v", basis.Name, side, strike))
			contract.Exchange = basis.Exchange
			contract.Currency = basis.Currency
			contract.Type = instrument.TypeOptions
			contract.Basis = basis
			contract.Derivative = &instrument.Derivative{
				Strike:     strike,
				Side:       side,
				Expiration: expiration,
				TradeDate:  time.Now(),
			}
			out = append(out, contract)
		}
	}
	return out, nil
}

// Positions reports open positions as orders, one per instrument.
func (v *Venue) Positions(ctx context.Context, criteria gateway.Criteria) ([]*order.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []*order.Order
	for name, p := range v.positions {
		if p.amount == 0 {
			continue
		}
		if criteria.Instrument != nil && criteria.Instrument.Name != name {
			continue
		}

		o := order.New()
		o.Side = order.SideLong
		if p.amount < 0 {
			o.Side = order.SideShort
		}
		o.Type = order.TypeMarket
		o.TimeSpan = order.SpanGtc
		o.Amount = order.Amounts(math.Abs(p.amount))
		o.Operation = order.Operation{
			Amount:       math.Abs(p.amount),
			AveragePrice: p.avgPrice,
			Status:       order.StatusFilled,
			Instrument:   v.contracts[name],
		}
		out = append(out, o)
	}
	return out, nil
}

// Orders reports resting orders.
func (v *Venue) Orders(ctx context.Context, criteria gateway.Criteria) ([]*order.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []*order.Order
	for _, o := range v.working {
		if criteria.Instrument != nil && o.Instrument() != nil && criteria.Instrument.Name != o.Instrument().Name {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// Transactions reports completed fills, oldest first.
func (v *Venue) Transactions(ctx context.Context, criteria gateway.Criteria) ([]*order.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []*order.Order
	for _, o := range v.history {
		if !criteria.MatchDate(o.Operation.Time) {
			continue
		}
		if !criteria.MatchPrice(o.Operation.AveragePrice) {
			continue
		}
		out = append(out, o)
		if criteria.Count > 0 && len(out) == criteria.Count {
			break
		}
	}
	return out, nil
}

func (v *Venue) currentQuote(criteria gateway.Criteria) (*instrument.Price, error) {
	if criteria.Instrument == nil {
		return nil, ErrInstrumentNeeded
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	q, ok := v.quotes[criteria.Instrument.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentUnknown, criteria.Instrument.Name)
	}
	return q, nil
}

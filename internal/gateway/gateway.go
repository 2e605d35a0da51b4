// Package gateway binds one venue adapter to one account behind the uniform
// contract: lifecycle, order validation and composition, and realized
// performance bookkeeping are identical regardless of the venue's wire
// protocol.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Indemos/Terminal-sub003/internal/account"
	"github.com/Indemos/Terminal-sub003/internal/events"
	"github.com/Indemos/Terminal-sub003/internal/instrument"
	"github.com/Indemos/Terminal-sub003/internal/order"
	"github.com/Indemos/Terminal-sub003/internal/subscription"
)

var (
	ErrNotConnected    = errors.New("gateway is not connected")
	ErrAccountRequired = errors.New("gateway requires an account")
	ErrAdapterRequired = errors.New("gateway requires a venue adapter")
	ErrInvalidOrder    = errors.New("order failed validation")
)

// Journal persists submitted orders and applied fills. SaveFill reports
// whether the fill was newly recorded; a duplicate means the event was
// already applied in a previous run.
type Journal interface {
	SaveOrder(ctx context.Context, o *order.Order) error
	SaveFill(ctx context.Context, ev events.OrderEvent) (bool, error)
}

// Gateway is the per-account façade over a venue adapter. Each instance is
// independent and owns its account exclusively; it is the sole writer of the
// account's performance and instrument map.
type Gateway struct {
	account   *account.Account
	adapter   Adapter
	state     *subscription.Controller
	bus       *events.Bus
	validator *order.Validator
	composer  *order.Composer
	journal   Journal
	log       *zap.Logger

	mu       sync.Mutex // serializes lifecycle operations
	applied  map[string]struct{}
	feedStop context.CancelFunc
	feedDone chan struct{}
}

// Options carries the injected collaborators. Validator and Composer default
// when nil; Journal and Bus are optional.
type Options struct {
	Account   *account.Account
	Adapter   Adapter
	Bus       *events.Bus
	Validator *order.Validator
	Composer  *order.Composer
	Journal   Journal
	Logger    *zap.Logger
}

// New constructs a gateway parked at None.
func New(opts Options) (*Gateway, error) {
	if opts.Account == nil {
		return nil, ErrAccountRequired
	}
	if opts.Adapter == nil {
		return nil, ErrAdapterRequired
	}
	if opts.Validator == nil {
		opts.Validator = order.NewValidator()
	}
	if opts.Composer == nil {
		opts.Composer = order.NewComposer()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	g := &Gateway{
		account:   opts.Account,
		adapter:   opts.Adapter,
		state:     subscription.NewController(),
		bus:       opts.Bus,
		validator: opts.Validator,
		composer:  opts.Composer,
		journal:   opts.Journal,
		log:       opts.Logger.Named("gateway").With(zap.String("account", opts.Account.Descriptor)),
		applied:   make(map[string]struct{}),
	}

	if g.bus != nil {
		g.state.OnTransition(g.bus.PublishState)
	}

	return g, nil
}

// Account returns the account this gateway owns. Callers treat it as a
// read-only snapshot source.
func (g *Gateway) Account() *account.Account { return g.account }

// State returns the current lifecycle status.
func (g *Gateway) State() subscription.Status { return g.state.Current() }

// OnTransition registers a lifecycle observer.
func (g *Gateway) OnTransition(fn subscription.Observer) { g.state.OnTransition(fn) }

// Connect opens the venue session and attaches the order/fill event feed.
// Calling it outside None is a logged no-op.
func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s := g.state.Current(); s != subscription.StatusNone {
		g.log.Warn("connect ignored", zap.String("state", string(s)))
		return nil
	}

	err := g.state.Drive(subscription.StatusStream, subscription.StatusNone, func() error {
		if err := g.adapter.Connect(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		g.startFeed()
		return nil
	})
	if err != nil {
		g.report("connect", err)
	}
	return err
}

// Disconnect closes the venue session. The Progress→None transition is the
// authoritative clear-cache signal for downstream consumers.
func (g *Gateway) Disconnect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state.Current() {
	case subscription.StatusStream, subscription.StatusPause:
	default:
		g.log.Warn("disconnect ignored", zap.String("state", string(g.state.Current())))
		return nil
	}

	err := g.state.Drive(subscription.StatusNone, subscription.StatusNone, func() error {
		g.stopFeed()
		if err := g.adapter.Disconnect(ctx); err != nil {
			return fmt.Errorf("disconnect: %w", err)
		}
		return nil
	})
	if err != nil {
		g.report("disconnect", err)
	}
	return err
}

// Subscribe starts data delivery for one instrument.
func (g *Gateway) Subscribe(ctx context.Context, ins *instrument.Instrument) error {
	return g.drive(ctx, "subscribe", subscription.StatusStream, subscription.StatusPause, func() error {
		return g.adapter.Subscribe(ctx, ins)
	})
}

// Unsubscribe suspends data delivery for one instrument.
func (g *Gateway) Unsubscribe(ctx context.Context, ins *instrument.Instrument) error {
	return g.drive(ctx, "unsubscribe", subscription.StatusPause, subscription.StatusStream, func() error {
		return g.adapter.Unsubscribe(ctx, ins)
	})
}

// SubscribeAll fans out one Subscribe per held instrument, concurrently,
// waits for all of them, and reports the aggregate transition once. A
// failure in any single instrument's call surfaces in the aggregate error.
func (g *Gateway) SubscribeAll(ctx context.Context) error {
	return g.drive(ctx, "subscribe all", subscription.StatusStream, subscription.StatusPause, func() error {
		return g.fanOut(ctx, g.adapter.Subscribe)
	})
}

// UnsubscribeAll fans out one Unsubscribe per held instrument with join-all
// semantics.
func (g *Gateway) UnsubscribeAll(ctx context.Context) error {
	return g.drive(ctx, "unsubscribe all", subscription.StatusPause, subscription.StatusStream, func() error {
		return g.fanOut(ctx, g.adapter.Unsubscribe)
	})
}

func (g *Gateway) drive(ctx context.Context, op string, success, failure subscription.Status, body func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state.Current() {
	case subscription.StatusStream, subscription.StatusPause:
	default:
		g.log.Warn(op+" ignored", zap.String("state", string(g.state.Current())))
		return nil
	}

	err := g.state.Drive(success, failure, body)
	if err != nil {
		g.report(op, err)
	}
	return err
}

// fanOut issues the call for every held instrument concurrently and joins
// all results; individual failures are aggregated, never dropped.
func (g *Gateway) fanOut(ctx context.Context, call func(context.Context, *instrument.Instrument) error) error {
	var (
		mu   sync.Mutex
		errs error
	)

	grp, ctx := errgroup.WithContext(ctx)
	for _, ins := range g.account.Instruments() {
		ins := ins
		grp.Go(func() error {
			if err := call(ctx, ins); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", ins.Name, err))
				mu.Unlock()
			}
			// Always nil: the group must join every call, not stop at the
			// first failure.
			return nil
		})
	}
	_ = grp.Wait()
	return errs
}

// GetAccount returns the venue's account snapshot.
func (g *Gateway) GetAccount(ctx context.Context) (*account.Account, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return g.adapter.Account(ctx)
}

// Dom returns the current depth-of-market snapshot.
func (g *Gateway) Dom(ctx context.Context, criteria Criteria) (*instrument.Dom, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return g.adapter.Dom(ctx, criteria)
}

// GetBars returns the ordered bar sequence matching the criteria.
func (g *Gateway) GetBars(ctx context.Context, criteria Criteria) ([]*instrument.Price, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return g.adapter.Bars(ctx, criteria)
}

// GetTicks returns the ordered tick sequence matching the criteria.
func (g *Gateway) GetTicks(ctx context.Context, criteria Criteria) ([]*instrument.Price, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return g.adapter.Ticks(ctx, criteria)
}

// GetOptions returns the derivative contracts matching the criteria.
func (g *Gateway) GetOptions(ctx context.Context, criteria Criteria) ([]*instrument.Instrument, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return g.adapter.Options(ctx, criteria)
}

// GetPositions returns open positions.
func (g *Gateway) GetPositions(ctx context.Context, criteria Criteria) ([]*order.Order, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return g.adapter.Positions(ctx, criteria)
}

// GetOrders returns working orders.
func (g *Gateway) GetOrders(ctx context.Context, criteria Criteria) ([]*order.Order, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return g.adapter.Orders(ctx, criteria)
}

// GetTransactions returns completed transactions.
func (g *Gateway) GetTransactions(ctx context.Context, criteria Criteria) ([]*order.Order, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return g.adapter.Transactions(ctx, criteria)
}

// SendOrder validates the order tree, composes it into flat legs and submits
// each leg to the venue. Validation problems block submission and come back
// as the ErrorState list; adapter failures per leg are reported through the
// message channel and reflected in the returned leg status.
func (g *Gateway) SendOrder(ctx context.Context, o *order.Order) ([]*order.Order, []order.ErrorState) {
	if err := g.guard(); err != nil {
		return nil, []order.ErrorState{{Message: err.Error()}}
	}

	if errs := g.validator.Validate(o); len(errs) > 0 {
		return nil, errs
	}

	legs := g.composer.Compose(o)
	for _, leg := range legs {
		ack, err := g.adapter.Submit(ctx, leg)
		if err != nil {
			leg.Operation.Status = order.StatusRejected
			g.report("send order", fmt.Errorf("submit leg %s: %w", leg.ID, err))
		} else if ack != nil {
			leg.Operation = ack.Operation
		}

		if g.journal != nil {
			if err := g.journal.SaveOrder(ctx, leg); err != nil {
				g.log.Error("journal order", zap.String("order", leg.ID), zap.Error(err))
			}
		}
	}

	return legs, nil
}

// ClearOrder cancels an order on the venue.
func (g *Gateway) ClearOrder(ctx context.Context, o *order.Order) error {
	if err := g.guard(); err != nil {
		return err
	}
	if err := g.adapter.Cancel(ctx, o); err != nil {
		g.report("clear order", fmt.Errorf("cancel %s: %w", o.ID, err))
		return err
	}
	return nil
}

// guard rejects data operations while disconnected. Consumers must no-op all
// data-mutating calls while the state is None.
func (g *Gateway) guard() error {
	switch g.state.Current() {
	case subscription.StatusNone:
		return ErrNotConnected
	default:
		return nil
	}
}

// startFeed attaches the single consumer of the adapter's order/fill and
// quote streams. One goroutine folds both sequences in delivery order, so
// performance accrual is a strict left fold over the transport's ordering
// and the account only ever moves forward through quote snapshots.
func (g *Gateway) startFeed() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	g.feedStop = cancel
	g.feedDone = done

	go func() {
		defer close(done)
		orders := g.adapter.Events()
		prices := g.adapter.Prices()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-orders:
				if !ok {
					if prices == nil {
						return
					}
					orders = nil
					continue
				}
				g.apply(ctx, ev)
			case ev, ok := <-prices:
				if !ok {
					if orders == nil {
						return
					}
					prices = nil
					continue
				}
				g.applyPrice(ev)
			}
		}
	}()
}

func (g *Gateway) stopFeed() {
	if g.feedStop == nil {
		return
	}
	g.feedStop()
	<-g.feedDone
	g.feedStop = nil
	g.feedDone = nil
}

// applyPrice folds one quote into account state: the held instrument is
// replaced wholesale with a copy carrying the new snapshot, never mutated.
func (g *Gateway) applyPrice(ev events.PriceEvent) {
	if ev.Price == nil {
		return
	}
	held := g.account.Instrument(ev.Instrument)
	if held == nil {
		return
	}

	g.account.SetInstrument(held.WithPrice(ev.Price))
	if g.bus != nil {
		g.bus.PublishPrice(ev)
	}
}

// apply folds one inbound event into account state. Fills are keyed by event
// ID so an at-least-once transport cannot double-apply the same delta.
func (g *Gateway) apply(ctx context.Context, ev events.OrderEvent) {
	if g.bus != nil {
		g.bus.PublishOrder(ev)
	}

	if ev.Status != order.StatusTransaction {
		return
	}
	if _, seen := g.applied[ev.ID]; seen {
		g.log.Debug("duplicate fill skipped", zap.String("event", ev.ID))
		return
	}

	if g.journal != nil {
		fresh, err := g.journal.SaveFill(ctx, ev)
		if err != nil {
			g.log.Error("journal fill", zap.String("event", ev.ID), zap.Error(err))
		} else if !fresh {
			g.applied[ev.ID] = struct{}{}
			g.log.Debug("fill already journaled", zap.String("event", ev.ID))
			return
		}
	}

	g.applied[ev.ID] = struct{}{}
	g.account.Performance.Add(ev.Balance)
}

// report routes an adapter failure to the message channel instead of
// propagating it as a panic; the gateway stays usable for retries.
func (g *Gateway) report(source string, err error) {
	g.log.Error(source, zap.Error(err))
	if g.bus == nil {
		return
	}
	g.bus.PublishMessage(events.Message{
		Source:      source,
		Description: err.Error(),
		Err:         err,
		Time:        time.Now(),
	})
}

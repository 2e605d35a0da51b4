package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Indemos/Terminal-sub003/internal/account"
	"github.com/Indemos/Terminal-sub003/internal/events"
	"github.com/Indemos/Terminal-sub003/internal/instrument"
	"github.com/Indemos/Terminal-sub003/internal/order"
	"github.com/Indemos/Terminal-sub003/internal/subscription"
)

// fakeAdapter is an in-memory venue used by the gateway tests.
type fakeAdapter struct {
	mu           sync.Mutex
	connectErr   error
	subscribeErr map[string]error
	subscribed   []string
	submitted    []*order.Order
	canceled     []*order.Order
	events       chan events.OrderEvent
	prices       chan events.PriceEvent
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		subscribeErr: make(map[string]error),
		events:       make(chan events.OrderEvent, 16),
		prices:       make(chan events.PriceEvent, 16),
	}
}

func (f *fakeAdapter) Connect(context.Context) error    { return f.connectErr }
func (f *fakeAdapter) Disconnect(context.Context) error { return nil }

func (f *fakeAdapter) Subscribe(_ context.Context, ins *instrument.Instrument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.subscribeErr[ins.Name]; err != nil {
		return err
	}
	f.subscribed = append(f.subscribed, ins.Name)
	return nil
}

func (f *fakeAdapter) Unsubscribe(_ context.Context, ins *instrument.Instrument) error {
	return f.subscribeErr[ins.Name]
}

func (f *fakeAdapter) Dom(context.Context, Criteria) (*instrument.Dom, error) {
	return &instrument.Dom{}, nil
}
func (f *fakeAdapter) Bars(context.Context, Criteria) ([]*instrument.Price, error)  { return nil, nil }
func (f *fakeAdapter) Ticks(context.Context, Criteria) ([]*instrument.Price, error) { return nil, nil }
func (f *fakeAdapter) Options(context.Context, Criteria) ([]*instrument.Instrument, error) {
	return nil, nil
}
func (f *fakeAdapter) Account(context.Context) (*account.Account, error) { return nil, nil }
func (f *fakeAdapter) Positions(context.Context, Criteria) ([]*order.Order, error) {
	return nil, nil
}
func (f *fakeAdapter) Orders(context.Context, Criteria) ([]*order.Order, error) { return nil, nil }
func (f *fakeAdapter) Transactions(context.Context, Criteria) ([]*order.Order, error) {
	return nil, nil
}

func (f *fakeAdapter) Submit(_ context.Context, o *order.Order) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, o)
	ack := o.Clone()
	ack.Operation.Status = order.StatusPlaced
	return ack, nil
}

func (f *fakeAdapter) Cancel(_ context.Context, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, o)
	return nil
}

func (f *fakeAdapter) Events() <-chan events.OrderEvent { return f.events }
func (f *fakeAdapter) Prices() <-chan events.PriceEvent { return f.prices }

func (f *fakeAdapter) submittedNames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func testGateway(t *testing.T, adapter Adapter, instruments ...*instrument.Instrument) (*Gateway, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	g, err := New(Options{
		Account: account.New("demo", 1000, instruments...),
		Adapter: adapter,
		Bus:     bus,
	})
	require.NoError(t, err)
	return g, bus
}

func waitPerformance(t *testing.T, g *Gateway, want float64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if g.Account().Performance.Value() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("performance=%v, expected %v", g.Account().Performance.Value(), want)
}

func TestConnectEmitsOrderedTransitions(t *testing.T) {
	g, _ := testGateway(t, newFakeAdapter())

	var seen []subscription.Transition
	g.OnTransition(func(tr subscription.Transition) { seen = append(seen, tr) })

	require.NoError(t, g.Connect(context.Background()))
	require.Equal(t, []subscription.Transition{
		{Previous: subscription.StatusNone, Next: subscription.StatusProgress},
		{Previous: subscription.StatusProgress, Next: subscription.StatusStream},
	}, seen)

	require.NoError(t, g.Disconnect(context.Background()))
	require.Equal(t, subscription.StatusStream, seen[2].Previous)
	require.Equal(t, subscription.StatusProgress, seen[2].Next)
	require.Equal(t, subscription.StatusProgress, seen[3].Previous)
	require.Equal(t, subscription.StatusNone, seen[3].Next)
}

func TestConnectFailureReachesTerminalState(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.connectErr = errors.New("dial tcp: refused")
	g, bus := testGateway(t, adapter)

	msgs, unsub := bus.SubscribeMessages(4)
	defer unsub()

	err := g.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, subscription.StatusNone, g.State())

	// The failure surfaces as a structured message, not a panic.
	select {
	case msg := <-msgs:
		assert.Equal(t, "connect", msg.Source)
		assert.ErrorIs(t, msg.Err, adapter.connectErr)
	case <-time.After(time.Second):
		t.Fatal("no message published for the connect failure")
	}
}

func TestConnectTwiceIsNoOp(t *testing.T) {
	g, _ := testGateway(t, newFakeAdapter())
	require.NoError(t, g.Connect(context.Background()))

	var seen []subscription.Transition
	g.OnTransition(func(tr subscription.Transition) { seen = append(seen, tr) })

	require.NoError(t, g.Connect(context.Background()))
	assert.Empty(t, seen, "a repeated connect must not move the machine")
}

func TestReadsRejectedWhileDisconnected(t *testing.T) {
	g, _ := testGateway(t, newFakeAdapter())

	_, err := g.GetBars(context.Background(), Criteria{})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, errs := g.SendOrder(context.Background(), order.New())
	assert.NotEmpty(t, errs)
}

func TestPerformanceAccrualFromFills(t *testing.T) {
	adapter := newFakeAdapter()
	g, _ := testGateway(t, adapter)
	require.NoError(t, g.Connect(context.Background()))

	prior := g.Account().Performance.Value()
	for i, delta := range []float64{10, -3, 7, 0, -2} {
		adapter.events <- events.OrderEvent{
			ID:      string(rune('a' + i)),
			Status:  order.StatusTransaction,
			Balance: delta,
		}
	}

	waitPerformance(t, g, prior+12)
}

func TestDuplicateFillAppliedOnce(t *testing.T) {
	adapter := newFakeAdapter()
	g, _ := testGateway(t, adapter)
	require.NoError(t, g.Connect(context.Background()))

	fill := events.OrderEvent{ID: "fill-1", Status: order.StatusTransaction, Balance: 25}
	adapter.events <- fill
	adapter.events <- fill // redelivered by an at-least-once transport
	adapter.events <- fill

	waitPerformance(t, g, 25)

	// Give the feed a beat to prove no further accrual happens.
	time.Sleep(50 * time.Millisecond)
	assert.InDelta(t, 25, g.Account().Performance.Value(), 1e-9)
}

func TestPriceEventsUpdateAccountInstruments(t *testing.T) {
	spy := instrument.New("SPY")
	adapter := newFakeAdapter()
	g, bus := testGateway(t, adapter, spy)
	require.NoError(t, g.Connect(context.Background()))

	quotes, unsub := bus.SubscribePrices(4)
	defer unsub()

	adapter.prices <- events.PriceEvent{
		Instrument: "SPY",
		Price:      &instrument.Price{Bid: 99, Ask: 101, Time: time.Now(), Instrument: spy},
	}

	require.Eventually(t, func() bool {
		held := g.Account().Instrument("SPY")
		return held != nil && held.Price != nil && held.Price.Ask == 101
	}, 2*time.Second, 5*time.Millisecond)

	// The original instrument value is replaced, never mutated in place.
	assert.Nil(t, spy.Price)

	// The quote is republished for downstream consumers.
	select {
	case ev := <-quotes:
		assert.Equal(t, "SPY", ev.Instrument)
	case <-time.After(time.Second):
		t.Fatal("quote not republished on the bus")
	}

	// A later quote supersedes the earlier one.
	adapter.prices <- events.PriceEvent{
		Instrument: "SPY",
		Price:      &instrument.Price{Bid: 100, Ask: 102, Time: time.Now(), Instrument: spy},
	}
	require.Eventually(t, func() bool {
		held := g.Account().Instrument("SPY")
		return held.Price != nil && held.Price.Ask == 102
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPriceEventsForUnknownInstrumentsAreIgnored(t *testing.T) {
	adapter := newFakeAdapter()
	g, _ := testGateway(t, adapter, instrument.New("SPY"))
	require.NoError(t, g.Connect(context.Background()))

	adapter.prices <- events.PriceEvent{
		Instrument: "MISSING",
		Price:      &instrument.Price{Bid: 1, Ask: 2},
	}

	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, g.Account().Instrument("MISSING"))
	assert.Nil(t, g.Account().Instrument("SPY").Price)
}

func TestNonFillEventsDoNotAccrue(t *testing.T) {
	adapter := newFakeAdapter()
	g, _ := testGateway(t, adapter)
	require.NoError(t, g.Connect(context.Background()))

	adapter.events <- events.OrderEvent{ID: "p-1", Status: order.StatusPlaced, Balance: 99}

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, g.Account().Performance.Value())
}

func TestSendOrderValidatesBeforeSubmission(t *testing.T) {
	adapter := newFakeAdapter()
	g, _ := testGateway(t, adapter)
	require.NoError(t, g.Connect(context.Background()))

	invalid := order.New() // no side, no type, no time span
	legs, errs := g.SendOrder(context.Background(), invalid)

	assert.Nil(t, legs)
	assert.NotEmpty(t, errs)
	assert.Zero(t, adapter.submittedNames(), "invalid orders must never reach the venue")
}

func TestSendOrderComposesAndSubmitsLegs(t *testing.T) {
	adapter := newFakeAdapter()
	g, _ := testGateway(t, adapter)
	require.NoError(t, g.Connect(context.Background()))

	long := order.New()
	long.Side = order.SideLong
	long.Type = order.TypeMarket
	long.TimeSpan = order.SpanGtc
	long.Instruction = order.InstructionSide
	long.Amount = order.Amounts(1)

	short := order.New()
	short.Side = order.SideShort
	short.Type = order.TypeMarket
	short.TimeSpan = order.SpanGtc
	short.Instruction = order.InstructionSide
	short.Amount = order.Amounts(1)

	root := order.New()
	root.Descriptor = "spread-1"
	root.Instruction = order.InstructionGroup
	root.Side = order.SideLong
	root.Type = order.TypeMarket
	root.TimeSpan = order.SpanGtc
	root.Orders = []*order.Order{long, short}

	legs, errs := g.SendOrder(context.Background(), root)
	require.Empty(t, errs)
	require.Len(t, legs, 2)
	assert.Equal(t, 2, adapter.submittedNames())

	for _, leg := range legs {
		assert.Equal(t, "spread-1", leg.Descriptor)
		assert.Equal(t, order.StatusPlaced, leg.Operation.Status)
	}
}

func TestSubscribeAllJoinsAllAndAggregatesFailures(t *testing.T) {
	spy := instrument.New("SPY")
	qqq := instrument.New("QQQ")
	iwm := instrument.New("IWM")

	adapter := newFakeAdapter()
	adapter.subscribeErr["QQQ"] = errors.New("symbol rejected")

	g, _ := testGateway(t, adapter, spy, qqq, iwm)
	require.NoError(t, g.Connect(context.Background()))

	err := g.SubscribeAll(context.Background())
	require.Error(t, err, "a single instrument failure must not vanish")
	assert.Contains(t, err.Error(), "QQQ")

	// The healthy instruments were still attempted (join-all, not fail-fast).
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	assert.ElementsMatch(t, []string{"SPY", "IWM"}, adapter.subscribed)
	assert.Equal(t, subscription.StatusPause, g.State())
}

func TestUnsubscribeAllMovesToPause(t *testing.T) {
	g, _ := testGateway(t, newFakeAdapter(), instrument.New("SPY"))
	require.NoError(t, g.Connect(context.Background()))

	require.NoError(t, g.UnsubscribeAll(context.Background()))
	assert.Equal(t, subscription.StatusPause, g.State())

	require.NoError(t, g.SubscribeAll(context.Background()))
	assert.Equal(t, subscription.StatusStream, g.State())
}

func TestClearOrderDelegatesToAdapter(t *testing.T) {
	adapter := newFakeAdapter()
	g, _ := testGateway(t, adapter)
	require.NoError(t, g.Connect(context.Background()))

	o := order.New()
	require.NoError(t, g.ClearOrder(context.Background(), o))

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	require.Len(t, adapter.canceled, 1)
	assert.Equal(t, o.ID, adapter.canceled[0].ID)
}

package gateway

import (
	"context"

	"github.com/Indemos/Terminal-sub003/internal/account"
	"github.com/Indemos/Terminal-sub003/internal/events"
	"github.com/Indemos/Terminal-sub003/internal/instrument"
	"github.com/Indemos/Terminal-sub003/internal/order"
)

// The gateway contract is split into three small capability interfaces a
// venue adapter implements against its own wire protocol. Adapters own
// their timeouts, reconnects and throttling; this layer only reports their
// failures.

// Connector manages the network session and per-instrument data
// subscriptions.
type Connector interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Subscribe(ctx context.Context, ins *instrument.Instrument) error
	Unsubscribe(ctx context.Context, ins *instrument.Instrument) error
}

// PriceFeed serves market-data reads and the inbound quote stream.
type PriceFeed interface {
	Dom(ctx context.Context, criteria Criteria) (*instrument.Dom, error)
	Bars(ctx context.Context, criteria Criteria) ([]*instrument.Price, error)
	Ticks(ctx context.Context, criteria Criteria) ([]*instrument.Price, error)
	Options(ctx context.Context, criteria Criteria) ([]*instrument.Instrument, error)

	// Prices returns the venue's quote stream for subscribed instruments.
	// The channel stays open for the lifetime of the adapter.
	Prices() <-chan events.PriceEvent
}

// OrderBook serves account state, order management and the inbound
// order/fill event stream.
type OrderBook interface {
	Account(ctx context.Context) (*account.Account, error)
	Positions(ctx context.Context, criteria Criteria) ([]*order.Order, error)
	Orders(ctx context.Context, criteria Criteria) ([]*order.Order, error)
	Transactions(ctx context.Context, criteria Criteria) ([]*order.Order, error)
	Submit(ctx context.Context, o *order.Order) (*order.Order, error)
	Cancel(ctx context.Context, o *order.Order) error

	// Events returns the venue's order/fill stream. The channel stays open
	// for the lifetime of the adapter; delivery order follows the transport.
	Events() <-chan events.OrderEvent
}

// Adapter is the full per-venue surface composed into a Gateway.
type Adapter interface {
	Connector
	PriceFeed
	OrderBook
}

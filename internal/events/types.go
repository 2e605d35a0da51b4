package events

import (
	"time"

	"github.com/Indemos/Terminal-sub003/internal/instrument"
	"github.com/Indemos/Terminal-sub003/internal/order"
)

// Topic labels the core's streams on outward-facing surfaces such as the
// websocket feed. In-process consumers use the Bus's typed subscriptions.
type Topic string

const (
	TopicPrice   Topic = "price"
	TopicOrder   Topic = "order"
	TopicState   Topic = "state"
	TopicMessage Topic = "message"
)

// Message is the structured failure/notification record surfaced to callers
// instead of an exception. UI layers subscribe to it to display errors
// without crashing the session.
type Message struct {
	Code        int
	Source      string
	Description string
	Err         error
	Time        time.Time
}

// OrderEvent is one inbound order/fill update from a venue. Events with
// Status Transaction carry the realized Balance delta of a fill; ID is the
// venue's unique event key and guards against redelivery.
type OrderEvent struct {
	ID         string
	Descriptor string
	Status     order.Status
	Balance    float64 // realized balance delta, fills only
	Time       time.Time
	Order      *order.Order
}

// PriceEvent is one inbound quote update.
type PriceEvent struct {
	Instrument string
	Price      *instrument.Price
}

// Package order defines the recursive order model shared by every venue
// adapter, plus the validation and composition engines that run before any
// order leaves the process.
package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/Indemos/Terminal-sub003/internal/instrument"
)

// Side denotes order direction.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Type denotes the execution style. Limit, Stop and StopLimit are resting
// orders and require a price.
type Type string

const (
	TypeMarket    Type = "MARKET"
	TypeLimit     Type = "LIMIT"
	TypeStop      Type = "STOP"
	TypeStopLimit Type = "STOP_LIMIT"
)

// TimeSpan captures time-in-force semantics.
type TimeSpan string

const (
	SpanGtc TimeSpan = "GTC"
	SpanDay TimeSpan = "DAY"
	SpanIoc TimeSpan = "IOC"
	SpanFok TimeSpan = "FOK"
)

// Instruction tags a node's role inside an order tree.
type Instruction string

const (
	// InstructionSide marks one leg of a multi-instrument combo.
	InstructionSide Instruction = "SIDE"
	// InstructionBrace marks a bracket child attached beneath a parent leg,
	// e.g. a stop-loss or take-profit contingent on the parent's fill.
	InstructionBrace Instruction = "BRACE"
	// InstructionGroup marks a top-level container holding multiple legs.
	InstructionGroup Instruction = "GROUP"
)

// Status normalizes venue order states into a small set. StatusTransaction
// marks a fill event carrying a realized balance delta.
type Status string

const (
	StatusNone        Status = "NONE"
	StatusPending     Status = "PENDING"
	StatusPlaced      Status = "PLACED"
	StatusPartial     Status = "PARTIAL"
	StatusFilled      Status = "FILLED"
	StatusCanceled    Status = "CANCELED"
	StatusRejected    Status = "REJECTED"
	StatusTransaction Status = "TRANSACTION"
)

// Operation is the execution-time snapshot stamped onto an order when it is
// composed and updated as the venue reports progress.
type Operation struct {
	Amount       float64 // filled amount
	AveragePrice float64
	Time         time.Time
	Status       Status
	Instrument   *instrument.Instrument
}

// Order is a single order or the root of a multi-leg tree. The tree is
// strict: children are owned exclusively by their parent, there is no sharing
// and no cycles. A nil Amount marks a pure container node, e.g. a Group
// wrapper with no size of its own.
type Order struct {
	ID         string
	Descriptor string // grouping key shared by all legs of one logical order

	Amount          *float64
	Price           *float64 // limit/stop target
	ActivationPrice *float64 // stop-limit trigger

	Type        Type
	Side        Side
	TimeSpan    TimeSpan
	Instruction Instruction

	Operation Operation
	Orders    []*Order
}

// New returns an order with a fresh leg ID.
func New() *Order {
	return &Order{ID: uuid.NewString()}
}

// Instrument returns the contract the order trades, nil when unset.
func (o *Order) Instrument() *instrument.Instrument {
	return o.Operation.Instrument
}

// Clone returns a deep copy of the order tree. Composition works on copies so
// the caller's tree stays read-only once submitted.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}

	next := *o
	next.Amount = clonePtr(o.Amount)
	next.Price = clonePtr(o.Price)
	next.ActivationPrice = clonePtr(o.ActivationPrice)

	if len(o.Orders) > 0 {
		next.Orders = make([]*Order, 0, len(o.Orders))
		for _, child := range o.Orders {
			next.Orders = append(next.Orders, child.Clone())
		}
	} else {
		next.Orders = nil
	}

	return &next
}

// Walk visits the order and every descendant depth-first.
func (o *Order) Walk(visit func(*Order)) {
	if o == nil {
		return
	}
	visit(o)
	for _, child := range o.Orders {
		child.Walk(visit)
	}
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	next := *v
	return &next
}

// Amounts converts a literal into the optional Amount representation.
func Amounts(v float64) *float64 { return &v }

// Prices converts a literal into the optional Price representation.
func Prices(v float64) *float64 { return &v }

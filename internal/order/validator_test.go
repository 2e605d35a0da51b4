package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Indemos/Terminal-sub003/internal/instrument"
)

func quoted(name string, bid, ask float64) *instrument.Instrument {
	ins := instrument.New(name)
	ins.Price = &instrument.Price{
		Bid:        bid,
		Ask:        ask,
		Last:       (bid + ask) / 2,
		Time:       time.Unix(1700000000, 0),
		Instrument: ins,
	}
	return ins
}

func leg(side Side, typ Type, ins *instrument.Instrument) *Order {
	o := New()
	o.Side = side
	o.Type = typ
	o.TimeSpan = SpanGtc
	o.Amount = Amounts(1)
	o.Operation.Instrument = ins
	return o
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	ins := quoted("SPY", 99, 100)

	// Three structurally invalid nodes: validation must report all of them,
	// never just the first.
	root := leg(SideLong, TypeMarket, ins)
	root.Instruction = InstructionGroup

	missingSide := leg("", TypeMarket, ins)
	missingType := leg(SideLong, "", ins)
	missingSpan := leg(SideLong, TypeMarket, ins)
	missingSpan.TimeSpan = ""
	root.Orders = append(root.Orders, missingSide, missingType, missingSpan)

	errs := NewValidator().Validate(root)
	require.GreaterOrEqual(t, len(errs), 3)
}

func TestValidatePriceBounds(t *testing.T) {
	ins := quoted("SPY", 99, 100)

	tests := []struct {
		name   string
		side   Side
		typ    Type
		price  float64
		stop   *float64
		wantOK bool
	}{
		{name: "long stop below ask fails", side: SideLong, typ: TypeStop, price: 99.5, wantOK: false},
		{name: "long stop at ask passes", side: SideLong, typ: TypeStop, price: 100, wantOK: true},
		{name: "long stop above ask passes", side: SideLong, typ: TypeStop, price: 101, wantOK: true},
		{name: "long limit above ask fails", side: SideLong, typ: TypeLimit, price: 100.5, wantOK: false},
		{name: "long limit below ask passes", side: SideLong, typ: TypeLimit, price: 98, wantOK: true},
		{name: "short limit below bid fails", side: SideShort, typ: TypeLimit, price: 98, wantOK: false},
		{name: "short limit at bid passes", side: SideShort, typ: TypeLimit, price: 99, wantOK: true},
		{name: "short stop above bid fails", side: SideShort, typ: TypeStop, price: 99.5, wantOK: false},
		{name: "short stop below bid passes", side: SideShort, typ: TypeStop, price: 98, wantOK: true},
		{name: "long stop limit activation below ask fails", side: SideLong, typ: TypeStopLimit, price: 101, stop: Prices(99.5), wantOK: false},
		{name: "long stop limit passes", side: SideLong, typ: TypeStopLimit, price: 101, stop: Prices(100.5), wantOK: true},
		{name: "short stop limit passes", side: SideShort, typ: TypeStopLimit, price: 98, stop: Prices(98.5), wantOK: true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := leg(tt.side, tt.typ, ins)
			o.Price = Prices(tt.price)
			o.ActivationPrice = tt.stop

			errs := v.Validate(o)
			if tt.wantOK {
				assert.Empty(t, errs)
			} else {
				assert.NotEmpty(t, errs)
			}
		})
	}
}

func TestValidateRequiresPriceOnRestingOrders(t *testing.T) {
	ins := quoted("SPY", 99, 100)

	limit := leg(SideLong, TypeLimit, ins)
	errs := NewValidator().Validate(limit)
	require.NotEmpty(t, errs)

	stopLimit := leg(SideShort, TypeStopLimit, ins)
	stopLimit.Price = Prices(98)
	errs = NewValidator().Validate(stopLimit)
	require.NotEmpty(t, errs, "stop limit without activation price must fail")
}

func TestValidateRequiresQuoteForBounds(t *testing.T) {
	o := leg(SideLong, TypeLimit, instrument.New("SPY"))
	o.Price = Prices(10)

	errs := NewValidator().Validate(o)
	require.NotEmpty(t, errs)
}

func TestValidateMarketOrderNeedsNoPrice(t *testing.T) {
	o := leg(SideLong, TypeMarket, quoted("SPY", 99, 100))
	assert.Empty(t, NewValidator().Validate(o))
}

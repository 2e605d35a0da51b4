package order

import "fmt"

// ErrorState is a flat validation record. Violations are collected into
// lists and returned, never raised, so a caller can report every problem in
// an order tree at once.
type ErrorState struct {
	Message string
}

func errorf(format string, args ...any) ErrorState {
	return ErrorState{Message: fmt.Sprintf(format, args...)}
}

// Validator checks an order and, recursively, every descendant against the
// structural rules a venue-neutral order must satisfy. Construct one per
// gateway and inject it; there is no shared instance.
type Validator struct{}

// NewValidator returns a validation engine.
func NewValidator() *Validator { return &Validator{} }

// Validate returns every violation found in the order tree. An empty result
// means the order is eligible for composition and submission.
func (v *Validator) Validate(o *Order) []ErrorState {
	var out []ErrorState
	o.Walk(func(node *Order) {
		out = append(out, v.check(node)...)
	})
	return out
}

func (v *Validator) check(o *Order) []ErrorState {
	var out []ErrorState

	if o.Side == "" {
		out = append(out, errorf("order %s: side is not set", o.ID))
	}
	if o.Type == "" {
		out = append(out, errorf("order %s: type is not set", o.ID))
	}
	if o.TimeSpan == "" {
		out = append(out, errorf("order %s: time span is not set", o.ID))
	}

	switch o.Type {
	case TypeLimit, TypeStop, TypeStopLimit:
	default:
		return out
	}

	if o.Price == nil {
		out = append(out, errorf("order %s: %s order requires a price", o.ID, o.Type))
	}
	if o.Type == TypeStopLimit && o.ActivationPrice == nil {
		out = append(out, errorf("order %s: stop limit order requires an activation price", o.ID))
	}

	ins := o.Instrument()
	if ins == nil || ins.Price == nil {
		out = append(out, errorf("order %s: no current quote to validate price bounds against", o.ID))
		return out
	}
	if o.Price == nil {
		return out
	}

	out = append(out, v.checkBounds(o, ins.Price.Bid, ins.Price.Ask)...)
	return out
}

// checkBounds enforces direction-correct price bounds relative to the
// current quote: a resting long order triggers against the ask, a resting
// short order against the bid.
func (v *Validator) checkBounds(o *Order, bid, ask float64) []ErrorState {
	var out []ErrorState
	price := *o.Price

	switch o.Side {
	case SideLong:
		switch o.Type {
		case TypeLimit:
			if price > ask {
				out = append(out, errorf("order %s: long limit price %v must be at or below the ask %v", o.ID, price, ask))
			}
		case TypeStop:
			if price < ask {
				out = append(out, errorf("order %s: long stop price %v must be at or above the ask %v", o.ID, price, ask))
			}
		case TypeStopLimit:
			if o.ActivationPrice != nil {
				if *o.ActivationPrice < ask {
					out = append(out, errorf("order %s: long stop limit activation %v must be at or above the ask %v", o.ID, *o.ActivationPrice, ask))
				}
				if price < *o.ActivationPrice {
					out = append(out, errorf("order %s: long stop limit price %v must be at or above the activation %v", o.ID, price, *o.ActivationPrice))
				}
			}
		}

	case SideShort:
		switch o.Type {
		case TypeLimit:
			if price < bid {
				out = append(out, errorf("order %s: short limit price %v must be at or above the bid %v", o.ID, price, bid))
			}
		case TypeStop:
			if price > bid {
				out = append(out, errorf("order %s: short stop price %v must be at or below the bid %v", o.ID, price, bid))
			}
		case TypeStopLimit:
			if o.ActivationPrice != nil {
				if *o.ActivationPrice > bid {
					out = append(out, errorf("order %s: short stop limit activation %v must be at or below the bid %v", o.ID, *o.ActivationPrice, bid))
				}
				if price > *o.ActivationPrice {
					out = append(out, errorf("order %s: short stop limit price %v must be at or below the activation %v", o.ID, price, *o.ActivationPrice))
				}
			}
		}
	}

	return out
}

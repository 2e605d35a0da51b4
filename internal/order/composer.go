package order

import (
	"time"

	"github.com/google/uuid"
)

// Composer flattens an order tree into the set of independently-submittable
// leg orders it implies. Shared attributes are inherited top-down and an
// explicit value on the leg always wins over an inherited container default.
// Bracket children never surface as top-level entries; they are folded into
// the composed order of the leg they protect.
type Composer struct {
	// Now supplies the fallback execution stamp when a leg has no quote.
	Now func() time.Time
}

// NewComposer returns a composition engine.
func NewComposer() *Composer {
	return &Composer{Now: time.Now}
}

// Compose returns one flat order per tradable leg, each carrying its own
// bracket children, ready for per-leg submission. Pure container nodes
// (Amount == nil) contribute their defaults but never appear in the output.
// The input tree is not modified.
func (c *Composer) Compose(o *Order) []*Order {
	if o == nil {
		return nil
	}
	return c.compose(o.Clone())
}

func (c *Composer) compose(node *Order) []*Order {
	var out []*Order

	braces := childrenByRole(node, InstructionBrace)

	// A node with its own size is itself a tradable leg, merged against
	// itself so the same defaulting applies.
	if node.Amount != nil {
		leg := c.merge(node, node)
		leg.Orders = c.foldBraces(leg, braces)
		out = append(out, leg)
	}

	for _, child := range node.Orders {
		switch child.Instruction {
		case InstructionBrace:
			// Folded into a leg above or below, never emitted directly.
		case InstructionGroup:
			out = append(out, c.compose(child)...)
		default:
			leg := c.merge(node, child)
			legBraces := childrenByRole(child, InstructionBrace)
			if node.Amount == nil {
				// Container-level brackets protect every leg of the group.
				legBraces = append(legBraces, cloneBraces(braces)...)
			}
			leg.Orders = c.foldBraces(leg, legBraces)
			out = append(out, leg)
		}
	}

	return out
}

// merge resolves one outgoing order from a group/leg pair: the group
// contributes Descriptor and defaults, the leg keeps every value it sets
// explicitly.
func (c *Composer) merge(group, leg *Order) *Order {
	next := leg.Clone()
	next.Orders = nil

	if group.Descriptor != "" {
		// The descriptor is the grouping key; all legs of one logical order
		// share the container's.
		next.Descriptor = group.Descriptor
	}
	if next.Type == "" {
		next.Type = group.Type
	}
	if next.Type == "" {
		next.Type = TypeMarket
	}
	if next.TimeSpan == "" {
		next.TimeSpan = group.TimeSpan
	}
	if next.TimeSpan == "" {
		next.TimeSpan = SpanGtc
	}
	if next.Side == "" {
		next.Side = group.Side
	}
	if next.Amount == nil && group.Amount != nil {
		next.Amount = clonePtr(group.Amount)
	}
	next.Instruction = InstructionSide

	c.stamp(next)
	return next
}

// foldBraces merges bracket children beneath their leg, recursively, so the
// composed order carries its whole protective structure.
func (c *Composer) foldBraces(leg *Order, braces []*Order) []*Order {
	if len(braces) == 0 {
		return nil
	}

	out := make([]*Order, 0, len(braces))
	for _, brace := range braces {
		merged := c.merge(leg, brace)
		merged.Instruction = InstructionBrace
		merged.Orders = c.foldBraces(merged, childrenByRole(brace, InstructionBrace))
		out = append(out, merged)
	}
	return out
}

// stamp records the execution-time snapshot from the leg's own instrument
// quote at merge time.
func (c *Composer) stamp(leg *Order) {
	leg.Operation.Status = StatusPending
	if ins := leg.Instrument(); ins != nil && ins.Price != nil {
		leg.Operation.Time = ins.Price.Time
		return
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	leg.Operation.Time = now()
}

func childrenByRole(node *Order, role Instruction) []*Order {
	var out []*Order
	for _, child := range node.Orders {
		if child.Instruction == role {
			out = append(out, child)
		}
	}
	return out
}

// cloneBraces copies container-level brackets so each leg owns its own child
// nodes; the tree stays strict and leg IDs stay unique.
func cloneBraces(braces []*Order) []*Order {
	out := make([]*Order, 0, len(braces))
	for _, brace := range braces {
		next := brace.Clone()
		next.Walk(func(n *Order) { n.ID = uuid.NewString() })
		out = append(out, next)
	}
	return out
}

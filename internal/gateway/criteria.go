package gateway

import (
	"time"

	"github.com/Indemos/Terminal-sub003/internal/instrument"
)

// Criteria filters the read operations on a gateway. Zero fields mean
// unfiltered; Extras carries venue-specific keys the core does not
// interpret.
type Criteria struct {
	Count      int
	MinPrice   *float64
	MaxPrice   *float64
	MinDate    *time.Time
	MaxDate    *time.Time
	Instrument *instrument.Instrument
	Extras     map[string]string
}

// WithInstrument returns a copy of the criteria scoped to one instrument.
func (c Criteria) WithInstrument(ins *instrument.Instrument) Criteria {
	c.Instrument = ins
	return c
}

// MatchPrice reports whether a value falls inside the price range.
func (c Criteria) MatchPrice(v float64) bool {
	if c.MinPrice != nil && v < *c.MinPrice {
		return false
	}
	if c.MaxPrice != nil && v > *c.MaxPrice {
		return false
	}
	return true
}

// MatchDate reports whether a timestamp falls inside the date range.
func (c Criteria) MatchDate(ts time.Time) bool {
	if c.MinDate != nil && ts.Before(*c.MinDate) {
		return false
	}
	if c.MaxDate != nil && ts.After(*c.MaxDate) {
		return false
	}
	return true
}

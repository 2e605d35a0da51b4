// Package subscription implements the four-state connectivity lifecycle every
// gateway drives: None, Progress, Stream, Pause. A Controller holds exactly
// one current value and broadcasts each transition synchronously to its
// observers. There is no queue: the controller is single-writer per scope and
// observers must be idempotent to repeated notifications.
package subscription

import "sync"

// Status is one of the four lifecycle states.
type Status string

const (
	// StatusNone means no connection and no data.
	StatusNone Status = "NONE"
	// StatusProgress is the transient state while an operation is in flight.
	StatusProgress Status = "PROGRESS"
	// StatusStream means connected and receiving live data.
	StatusStream Status = "STREAM"
	// StatusPause means connected with data delivery intentionally suspended.
	StatusPause Status = "PAUSE"
)

// Transition is an immutable {Previous, Next} pair, created fresh on every
// move. Downstream consumers treat Progress→None as the signal to clear all
// cached state.
type Transition struct {
	Previous Status
	Next     Status
}

// Observer receives every transition, synchronously, in emission order.
type Observer func(Transition)

// Controller is the lifecycle cell. The zero value is not usable; construct
// with NewController.
type Controller struct {
	mu        sync.Mutex
	current   Status
	observers []Observer
}

// NewController returns a controller parked at None.
func NewController() *Controller {
	return &Controller{current: StatusNone}
}

// Current returns the present state.
func (c *Controller) Current() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// OnTransition registers an observer for every subsequent transition.
// Observers run synchronously under the controller lock, so one writer's
// notifications can never interleave with another's.
func (c *Controller) OnTransition(fn Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Move sets the state and fires every observer with the {Previous, Next}
// pair before returning.
func (c *Controller) Move(next Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moveLocked(next)
}

func (c *Controller) moveLocked(next Status) {
	tr := Transition{Previous: c.current, Next: next}
	c.current = next
	for _, fn := range c.observers {
		fn(tr)
	}
}

// Drive runs one lifecycle operation: it emits the transitional Progress
// state, runs the body, then emits the success state, or the failure state
// when the body errors. The machine is guaranteed to reach a terminal state
// even when the body fails; it is never left parked at Progress.
func (c *Controller) Drive(success, failure Status, body func() error) error {
	c.Move(StatusProgress)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				c.Move(failure)
				panic(r)
			}
		}()
		return body()
	}()

	if err != nil {
		c.Move(failure)
		return err
	}

	c.Move(success)
	return nil
}

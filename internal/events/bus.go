// Package events carries the process-wide streams a gateway produces: quote
// updates, order/fill events, lifecycle transitions and failure messages.
package events

import (
	"sync"

	"github.com/Indemos/Terminal-sub003/internal/subscription"
)

// stream fans one event type out to its subscribers. Publishing never
// blocks: a subscriber that falls behind loses events rather than stalling
// the producer.
type stream[T any] struct {
	mu   sync.RWMutex
	subs []chan T
}

func (s *stream[T]) subscribe(buffer int) (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan T, buffer)
	s.subs = append(s.subs, ch)

	unsub := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, c := range s.subs {
			if c == ch {
				close(c)
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
	return ch, unsub
}

func (s *stream[T]) publish(v T) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
			// drop if subscriber is slow; keep the producer non-blocking
		}
	}
}

// Bus bundles the four core streams behind typed subscriptions, one channel
// set per event type.
type Bus struct {
	prices   stream[PriceEvent]
	orders   stream[OrderEvent]
	states   stream[subscription.Transition]
	messages stream[Message]
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{}
}

// SubscribePrices registers a quote listener and returns the channel and an
// unsubscribe function.
func (b *Bus) SubscribePrices(buffer int) (<-chan PriceEvent, func()) {
	return b.prices.subscribe(buffer)
}

// SubscribeOrders registers an order/fill listener.
func (b *Bus) SubscribeOrders(buffer int) (<-chan OrderEvent, func()) {
	return b.orders.subscribe(buffer)
}

// SubscribeStates registers a lifecycle-transition listener.
func (b *Bus) SubscribeStates(buffer int) (<-chan subscription.Transition, func()) {
	return b.states.subscribe(buffer)
}

// SubscribeMessages registers a failure/notification listener.
func (b *Bus) SubscribeMessages(buffer int) (<-chan Message, func()) {
	return b.messages.subscribe(buffer)
}

// PublishPrice fans a quote update out to its subscribers.
func (b *Bus) PublishPrice(ev PriceEvent) { b.prices.publish(ev) }

// PublishOrder fans an order/fill event out to its subscribers.
func (b *Bus) PublishOrder(ev OrderEvent) { b.orders.publish(ev) }

// PublishState fans a lifecycle transition out to its subscribers.
func (b *Bus) PublishState(tr subscription.Transition) { b.states.publish(tr) }

// PublishMessage fans a failure record out to its subscribers.
func (b *Bus) PublishMessage(msg Message) { b.messages.publish(msg) }

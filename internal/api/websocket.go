package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Indemos/Terminal-sub003/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// frame is one websocket payload: the topic plus the event itself.
type frame struct {
	Topic   events.Topic `json:"topic"`
	Payload any          `json:"payload"`
}

// forward labels one typed stream and feeds it into the merged channel.
func forward[T any](wg *sync.WaitGroup, topic events.Topic, stream <-chan T, merged chan<- frame, done <-chan struct{}) {
	defer wg.Done()
	for v := range stream {
		select {
		case merged <- frame{Topic: topic, Payload: v}:
		case <-done:
			return
		}
	}
}

// websocket streams quotes, lifecycle transitions, order events and failure
// messages to one client until it disconnects.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Log.Warn("ws upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteJSON(gin.H{"error": "bus not ready"})
		return
	}

	merged := make(chan frame, 100)
	done := make(chan struct{})
	var wg sync.WaitGroup

	prices, unsubPrices := s.Bus.SubscribePrices(100)
	defer unsubPrices()
	orders, unsubOrders := s.Bus.SubscribeOrders(100)
	defer unsubOrders()
	states, unsubStates := s.Bus.SubscribeStates(100)
	defer unsubStates()
	msgs, unsubMsgs := s.Bus.SubscribeMessages(100)
	defer unsubMsgs()

	wg.Add(4)
	go forward(&wg, events.TopicPrice, prices, merged, done)
	go forward(&wg, events.TopicOrder, orders, merged, done)
	go forward(&wg, events.TopicState, states, merged, done)
	go forward(&wg, events.TopicMessage, msgs, merged, done)

	defer func() {
		close(done)
		wg.Wait()
	}()

	// Read pump: the client sends nothing of interest, but its read error is
	// the only prompt notice of a departed peer.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			return
		case f := <-merged:
			if err := conn.WriteJSON(f); err != nil {
				s.Log.Debug("ws write", zap.Error(err))
				return
			}
		}
	}
}

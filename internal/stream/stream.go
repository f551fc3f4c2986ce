// Package stream provides in-process live-update fan-out. A subscription
// receives the topic's current value immediately, then every published
// change, until cancelled. Delivery order is guaranteed per topic only.
package stream

import (
	"sync"
)

// Topics published by the services.
const (
	TopicDailyPools   = "daily-pools"
	TopicMarketPrices = "market-prices"
)

const subscriberBuffer = 8

// Subscription is a live handle on one topic. Values arrive on C; Cancel
// stops delivery and closes C.
type Subscription struct {
	C      <-chan interface{}
	hub    *Hub
	topic  string
	ch     chan interface{}
	cancel sync.Once
}

// Cancel unregisters the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.cancel.Do(func() {
		s.hub.remove(s.topic, s.ch)
		close(s.ch)
	})
}

// Hub routes published values to topic subscribers and remembers the last
// value per topic for immediate delivery on subscribe.
type Hub struct {
	mu   sync.Mutex
	subs map[string][]chan interface{}
	last map[string]interface{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string][]chan interface{}),
		last: make(map[string]interface{}),
	}
}

// Subscribe registers for a topic. If the topic has a current value it is
// delivered before any subsequent publish.
func (h *Hub) Subscribe(topic string) *Subscription {
	ch := make(chan interface{}, subscriberBuffer)

	h.mu.Lock()
	if last, ok := h.last[topic]; ok {
		ch <- last
	}
	h.subs[topic] = append(h.subs[topic], ch)
	h.mu.Unlock()

	return &Subscription{C: ch, hub: h, topic: topic, ch: ch}
}

// Publish records value as the topic's current state and delivers it to all
// subscribers. Slow subscribers with a full buffer miss intermediate values
// rather than blocking the publisher; they still converge on the latest
// state at the next publish.
func (h *Hub) Publish(topic string, value interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last[topic] = value
	for _, ch := range h.subs[topic] {
		select {
		case ch <- value:
		default:
		}
	}
}

func (h *Hub) remove(topic string, ch chan interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[topic]
	for i, c := range subs {
		if c == ch {
			h.subs[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

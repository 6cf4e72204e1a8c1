// Package feed fans blog events received from the broker out to connected stream clients.
package feed

import (
	"context"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const subscriberBuffer = 16

// Hub keeps a set of subscriber channels and copies every published message to each of them.
// A subscriber that falls behind loses messages instead of blocking the others.
type Hub struct {
	mu        sync.RWMutex
	subs      map[chan []byte]struct{}
	closed    bool
	observers []func(msg []byte)
	logger    *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{subs: make(map[chan []byte]struct{}), logger: logger}
}

// Observe registers fn to be called with every delivery Run receives, before subscribers
// see it. It must be called before Run.
func (h *Hub) Observe(fn func(msg []byte)) {
	h.observers = append(h.observers, fn)
}

// Subscribe registers a new subscriber. The returned func removes it and must be called once
// the caller stops reading; it is safe to call more than once. The channel is closed when the
// subscription ends or the hub shuts down.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.remove(ch) })
	}
}

func (h *Hub) remove(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Publish delivers msg to every current subscriber without blocking.
func (h *Hub) Publish(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			h.logger.Warn("dropping feed message for slow subscriber")
		}
	}
}

// Subscribers reports the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Run forwards deliveries to subscribers until ctx is done or the delivery channel closes,
// then closes every subscriber channel.
func (h *Hub) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer h.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				h.logger.Warn("blog event deliveries closed")
				return
			}
			for _, fn := range h.observers {
				fn(d.Body)
			}
			h.Publish(d.Body)
		}
	}
}

// Close ends every open subscription. Later subscribers get an already closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
	h.closed = true
}

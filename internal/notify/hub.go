package notify

import "sync"

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 32

// Hub fans notifications out to subscribers. A subscriber that falls behind
// loses notifications instead of blocking the sender.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Notification
	next   int
	buffer int
	closed bool
}

// NewHub returns a Hub with the default subscriber buffer.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Notification), buffer: DefaultBuffer}
}

// Subscribe returns a channel of notifications and a function that
// unsubscribes and closes it.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Notification, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

func (h *Hub) Notify(n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscription. Later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

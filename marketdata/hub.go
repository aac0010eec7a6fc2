package marketdata

import "sync"

// Subscription is one consumer's buffered feed. Slow consumers drop
// updates rather than stall the publisher.
type Subscription struct {
	ch chan Update
}

// Updates returns the receive side of the subscription. The channel is
// closed on Unsubscribe.
func (s *Subscription) Updates() <-chan Update {
	return s.ch
}

// Hub fans updates out to subscribers. Broadcast never blocks.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

func (h *Hub) Subscribe(buffer int) *Subscription {
	sub := &Subscription{ch: make(chan Update, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	delete(h.subs, sub)
	h.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

func (h *Hub) Broadcast(u Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- u:
		default:
		}
	}
}

// SubscriberCount is observational.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

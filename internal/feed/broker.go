// Package feed streams live farm snapshots to websocket and SSE subscribers.
package feed

import (
	"sync"

	"solarfarm-cloud/internal/observability/metrics"
)

const defaultBuffer = 4

// Broker fans out encoded snapshots to subscribers. A subscriber whose buffer is full misses that snapshot.
type Broker struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	buffer  int
	closed  bool
}

// NewBroker constructs a broker with the given per-subscriber buffer.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker{clients: make(map[chan []byte]struct{}), buffer: buffer}
}

// Subscribe registers a new client channel. It returns nil once the broker is closed.
func (b *Broker) Subscribe() chan []byte {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	ch := make(chan []byte, b.buffer)
	b.clients[ch] = struct{}{}
	metrics.SetStreamSubscribers(len(b.clients))
	return ch
}

// Unsubscribe removes and closes a client channel. Unknown channels are ignored.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b == nil || ch == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; !ok {
		return
	}
	delete(b.clients, ch)
	close(ch)
	metrics.SetStreamSubscribers(len(b.clients))
}

// Len returns the number of subscribers.
func (b *Broker) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Broadcast delivers payload to every subscriber without blocking and returns how many were skipped.
func (b *Broker) Broadcast(payload []byte) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			dropped++
			metrics.IncStreamDropped()
		}
	}
	return dropped
}

// Close disconnects every subscriber and rejects new ones.
func (b *Broker) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
	metrics.SetStreamSubscribers(0)
}

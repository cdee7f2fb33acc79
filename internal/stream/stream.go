package stream

import (
	"context"
	"sync"
	"time"
)

// ShipmentEvent describes one lifecycle transition for live trace feeds.
type ShipmentEvent struct {
	ShipmentID string    `json:"shipment_id"`
	Status     string    `json:"status"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	RecallID   string    `json:"recall_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stream fan-outs shipment events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan ShipmentEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan ShipmentEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan ShipmentEvent {
	ch := make(chan ShipmentEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt ShipmentEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

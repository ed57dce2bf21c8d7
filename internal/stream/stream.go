// Package stream fan-outs registry mutation events to SSE subscribers, e.g.
// an occupancy dashboard.
package stream

import (
	"context"
	"sync"
	"time"
)

// Event describes one committed registry mutation.
type Event struct {
	Op         string    `json:"op"`
	Code       string    `json:"code"`
	ZonePrefix string    `json:"zone_prefix"`
	ActorID    string    `json:"actor_id"`
	Occupied   bool      `json:"occupied"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stream fan-outs events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber whose channel closes when ctx is done.
// Slow subscribers drop events rather than block publishers.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	s.mu.Lock()
	id := s.next
	s.next++
	ch := make(chan Event, 16)
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

// Publish delivers the event to every subscriber without blocking.
func (s *Stream) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (s *Stream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Package feed fans setting changes out to live listeners.
package feed

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"settings-portal/logger"
)

var log = logger.Get()

var ErrNotFound = errors.New("subscriber not found")

const defaultBuffer = 16

// Event is a single change notification.
type Event struct {
	Type  string    `json:"type"`
	Label string    `json:"label,omitempty"`
	Value string    `json:"value,omitempty"`
	At    time.Time `json:"at"`
}

// Subscriber receives events on a buffered channel. Events that do not fit
// are dropped rather than blocking the publisher.
type Subscriber struct {
	ID        string
	CreatedAt time.Time

	ch      chan Event
	dropped int
}

// Events returns the receive side of the subscriber's channel. It is closed
// when the subscriber is removed from the hub.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscriber
	buffer int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]*Subscriber), buffer: defaultBuffer}
}

// Subscribe registers a new listener.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		ch:        make(chan Event, h.buffer),
	}
	h.mu.Lock()
	h.subs[s.ID] = s
	h.mu.Unlock()
	log.WithField("subscriber", s.ID).Debug("feed subscriber added")
	return s
}

// Unsubscribe removes the listener and closes its channel.
func (h *Hub) Unsubscribe(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.subs[id]
	if !ok {
		return ErrNotFound
	}
	delete(h.subs, id)
	close(s.ch)
	if s.dropped > 0 {
		log.WithField("subscriber", id).Warnf("feed subscriber dropped %d events", s.dropped)
	}
	return nil
}

// Publish delivers ev to every subscriber with room for it and returns how
// many received it.
func (h *Hub) Publish(ev Event) int {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for _, s := range h.subs {
		select {
		case s.ch <- ev:
			delivered++
		default:
			s.dropped++
		}
	}
	return delivered
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close removes every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.ch)
	}
}

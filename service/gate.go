package service

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultQueueDepth bounds how many requests may wait for the next round.
const DefaultQueueDepth = 32

const (
	stateQueued int32 = iota
	stateRunning
	stateAbandoned
)

type pending struct {
	id    string
	w     http.ResponseWriter
	r     *http.Request
	next  http.Handler
	state atomic.Int32
	done  chan struct{}
}

// Gate parks incoming requests until ServeRound runs them. Handlers behind a
// gate therefore execute one at a time, on whichever goroutine calls
// ServeRound.
type Gate struct {
	queue chan *pending

	mu     sync.Mutex
	closed bool
}

// NewGate creates a gate holding at most depth waiting requests.
func NewGate(depth int) *Gate {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Gate{queue: make(chan *pending, depth)}
}

// Middleware routes requests for next through the gate. A full or closed gate
// answers 503 immediately.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := &pending{
			id:   uuid.NewString(),
			w:    w,
			r:    r,
			next: next,
			done: make(chan struct{}),
		}
		if !g.enqueue(p) {
			log.WithField("request", p.id).Warn("gate refused request")
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		log.WithField("request", p.id).Debugf("queued %s %s", r.Method, r.URL.Path)

		select {
		case <-p.done:
		case <-r.Context().Done():
			if p.state.CompareAndSwap(stateQueued, stateAbandoned) {
				log.WithField("request", p.id).Debug("client gave up while queued")
				return
			}
			// Already running; the writer is in use until it finishes.
			<-p.done
		}
	})
}

// ServeRound serves every request that was waiting when it was called and
// returns how many it served.
func (g *Gate) ServeRound() int {
	n := len(g.queue)
	served := 0
	for i := 0; i < n; i++ {
		select {
		case p := <-g.queue:
			if g.serve(p) {
				served++
			}
		default:
			return served
		}
	}
	return served
}

// Pending returns the number of parked requests, abandoned ones included.
func (g *Gate) Pending() int {
	return len(g.queue)
}

// Close refuses new requests and answers every parked one with 503.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	for {
		select {
		case p := <-g.queue:
			if p.state.CompareAndSwap(stateQueued, stateRunning) {
				http.Error(p.w, "service unavailable", http.StatusServiceUnavailable)
				close(p.done)
			}
		default:
			return
		}
	}
}

func (g *Gate) enqueue(p *pending) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	select {
	case g.queue <- p:
		return true
	default:
		return false
	}
}

func (g *Gate) serve(p *pending) (served bool) {
	if !p.state.CompareAndSwap(stateQueued, stateRunning) {
		return false
	}
	served = true
	defer close(p.done)
	defer func() {
		if err := recover(); err != nil {
			log.WithField("request", p.id).Errorf("panic serving request: %v", err)
			http.Error(p.w, "internal server error", http.StatusInternalServerError)
		}
	}()
	p.next.ServeHTTP(p.w, p.r)
	return served
}

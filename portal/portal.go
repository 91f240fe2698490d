// Package portal ties the settings store to its web form: it loads the
// store, listens for requests and services them on a fixed cadence.
package portal

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/samber/oops"
	"golang.org/x/time/rate"

	"settings-portal/api"
	"settings-portal/feed"
	"settings-portal/logger"
	"settings-portal/service"
	"settings-portal/settings"
)

var log = logger.Get()

// Options configures a Portal.
type Options struct {
	Addr        string
	Interval    time.Duration
	QueueDepth  int
	SaveLimiter *rate.Limiter
}

// Portal is the start/stop lifecycle around a settings store.
type Portal struct {
	store *settings.Store
	hub   *feed.Hub
	opts  Options

	mu     sync.Mutex
	active bool
	gate   *service.Gate
	sched  *service.Scheduler
	srv    *http.Server
	ln     net.Listener
	served chan error
}

// New creates a stopped portal. hub may be nil to disable the live feed.
func New(store *settings.Store, hub *feed.Hub, opts Options) *Portal {
	if hub != nil {
		api.PublishChanges(store, hub)
	}
	return &Portal{store: store, hub: hub, opts: opts}
}

// Begin loads the store, binds the listener and starts servicing requests.
func (p *Portal) Begin(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		return oops.Errorf("portal already running")
	}

	if err := p.store.Load(); err != nil {
		return oops.Wrapf(err, "load settings")
	}

	ln, err := net.Listen("tcp", p.opts.Addr)
	if err != nil {
		return oops.Wrapf(err, "listen on %s", p.opts.Addr)
	}

	gate := service.NewGate(p.opts.QueueDepth)
	router := api.RegisterRoutes(p.store, p.hub, api.Options{
		Gate:        gate,
		SaveLimiter: p.opts.SaveLimiter,
	})
	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	served := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		served <- err
	}()

	sched := service.NewScheduler(p.opts.Interval, func() {
		if n := gate.ServeRound(); n > 0 {
			log.WithField("requests", n).Debug("serviced clients")
		}
	})
	sched.Start(ctx)

	p.gate, p.sched, p.srv, p.ln, p.served = gate, sched, srv, ln, served
	p.active = true
	log.WithField("addr", ln.Addr().String()).Info("server started")
	return nil
}

// Stop halts servicing and shuts the listener down. Requests still waiting
// for a round are answered with 503.
func (p *Portal) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return nil
	}
	p.active = false

	p.sched.Stop()
	p.gate.Close()
	if p.hub != nil {
		p.hub.Close()
	}
	err := p.srv.Shutdown(ctx)
	if serveErr := <-p.served; serveErr != nil && err == nil {
		err = serveErr
	}
	log.Info("server stopped")
	if err != nil {
		return oops.Wrapf(err, "shutdown")
	}
	return nil
}

// Active reports whether the portal is servicing requests. It turns false
// when the context given to Begin is cancelled, even before Stop.
func (p *Portal) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active && p.sched.Active()
}

// Addr returns the bound listener address, or "" while stopped.
func (p *Portal) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return ""
	}
	return p.ln.Addr().String()
}

// Tick runs one service round immediately instead of waiting for the timer.
func (p *Portal) Tick() bool {
	p.mu.Lock()
	sched := p.sched
	active := p.active
	p.mu.Unlock()
	if !active {
		return false
	}
	return sched.Tick()
}

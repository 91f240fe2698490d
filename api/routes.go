package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"settings-portal/feed"
	"settings-portal/service"
	"settings-portal/settings"
)

// Options tunes the optional parts of the router.
type Options struct {
	// Gate, when set, parks the form and JSON routes until the next service
	// round. The WebSocket feed is never gated.
	Gate *service.Gate
	// SaveLimiter, when set, bounds how often /save may write to storage.
	// Only submissions that would change a stored value take a token.
	SaveLimiter *rate.Limiter
}

func RegisterRoutes(store *settings.Store, hub *feed.Hub, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := &handler{store: store, hub: hub, saveLimiter: opts.SaveLimiter}

	r.Group(func(r chi.Router) {
		// Saves are charged on arrival, before they wait for a round.
		r.Use(h.limitSaves)
		if opts.Gate != nil {
			r.Use(opts.Gate.Middleware)
		}
		r.Get("/", h.renderForm)
		r.Post("/save", h.saveForm)
		r.Get("/api/settings", h.listSettings)
	})

	r.Get("/api/settings/ws", h.handleWS)

	return r
}

type handler struct {
	store       *settings.Store
	hub         *feed.Hub
	saveLimiter *rate.Limiter
}

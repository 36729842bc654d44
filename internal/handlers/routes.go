package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abrezinsky/forumelections/internal/auth"
	"github.com/abrezinsky/forumelections/internal/services"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger) // Custom conditional HTTP logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(h.Auth.Authenticate)

	// WebSocket
	if h.Hub != nil {
		r.Get("/ws", h.Hub.ServeWs)
	}

	// Session
	r.Post("/session", h.handleLogin)
	r.Delete("/session", h.handleLogout)
	r.Get("/session/current", h.handleCurrentUser)

	r.Route("/election", func(r chi.Router) {
		// Public reads
		r.Get("/category-list", h.handleCategoryList)
		r.Get("/category-banner", h.handleCategoryBanner)
		r.Get("/{topicID}", h.handleGetElection)
		r.Get("/{topicID}/qr", h.handleShareQR)

		// Signed in users
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)

			r.Group(func(r chi.Router) {
				r.Use(h.limiter.middleware)
				r.Post("/nomination", h.handleAddSelf)
				r.Delete("/nomination", h.handleRemoveSelf)
			})

			r.Post("/posts", h.handleCreatePost)
			r.Put("/posts/{postID}", h.handleEditPost)
			r.Delete("/posts/{postID}", h.handleDestroyPost)
			r.Put("/posts/{postID}/recover", h.handleRecoverPost)

			r.Get("/notifications", h.handleNotifications)
		})

		// Elections admins
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireElectionsAdmin(h.opts.AdminModerator))

			r.Post("/create", h.handleCreateElection)
			r.Put("/start-poll", h.handleStartPoll)
			r.Put("/set-status", h.handleSetStatus)
			r.Put("/set-self-nomination-allowed", h.handleSetSelfNominationAllowed)
			r.Put("/set-status-banner", h.handleSetStatusBanner)
			r.Put("/set-status-banner-result-hours", h.handleSetStatusBannerResultHours)
			r.Put("/set-message", h.handleSetMessage(""))
			r.Put("/set-nomination-message", h.handleSetMessage(services.MessageNomination))
			r.Put("/set-poll-message", h.handleSetMessage(services.MessagePoll))
			r.Put("/set-closed-poll-message", h.handleSetMessage(services.MessageClosedPoll))
			r.Put("/set-position", h.handleSetPosition)
			r.Put("/set-poll-time", h.handleSetPollTime)
			r.Post("/nomination/set-by-username", h.handleSetByUsername)

			// Poll plugin callbacks
			r.Put("/poll/status", h.handlePollStatus)
			r.Put("/poll/voters", h.handlePollVoters)
		})
	})

	return r
}

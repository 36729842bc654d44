package handlers

import (
	"github.com/abrezinsky/forumelections/internal/auth"
	"github.com/abrezinsky/forumelections/internal/services"
	"github.com/abrezinsky/forumelections/internal/websocket"
)

// Options are the site settings the HTTP layer reads
type Options struct {
	// AdminModerator lets moderators use the election admin routes
	AdminModerator bool
	// BaseURL prefixes election links in share QR codes
	BaseURL            string
	RateLimitPerMinute int
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Elections     services.ElectionServicer
	Nominations   services.NominationServicer
	Times         services.PollTimer
	Lists         services.CategoryListServicer
	Posts         services.PostServicer
	Polls         services.PollServicer
	Notifications services.NotificationLister
	Auth          *auth.Auth
	Hub           *websocket.Hub
	Log           HTTPLogger
	opts          Options
	limiter       *rateLimiter
}

// HTTPLogger is an interface for loggers that support HTTP logging control
type HTTPLogger interface {
	IsHTTPLoggingEnabled() bool
}

// New creates a new Handlers instance with all dependencies
func New(
	elections services.ElectionServicer,
	nominations services.NominationServicer,
	times services.PollTimer,
	lists services.CategoryListServicer,
	posts services.PostServicer,
	polls services.PollServicer,
	notifications services.NotificationLister,
	sessionAuth *auth.Auth,
	hub *websocket.Hub,
	log HTTPLogger,
	opts Options,
) *Handlers {
	return &Handlers{
		Elections:     elections,
		Nominations:   nominations,
		Times:         times,
		Lists:         lists,
		Posts:         posts,
		Polls:         polls,
		Notifications: notifications,
		Auth:          sessionAuth,
		Hub:           hub,
		Log:           log,
		opts:          opts,
		limiter:       newRateLimiter(opts.RateLimitPerMinute),
	}
}

// NoopHTTPLogger is a test logger that always returns false for HTTP logging
type NoopHTTPLogger struct{}

func (NoopHTTPLogger) IsHTTPLoggingEnabled() bool { return false }

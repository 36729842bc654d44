package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/forumelections/internal/auth"
	"github.com/abrezinsky/forumelections/internal/config"
	"github.com/abrezinsky/forumelections/internal/handlers"
	"github.com/abrezinsky/forumelections/internal/jobs"
	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/repository"
	"github.com/abrezinsky/forumelections/internal/services"
	"github.com/abrezinsky/forumelections/internal/websocket"
)

// App holds all application dependencies
type App struct {
	log      logger.Logger
	cfg      config.Config
	handlers *handlers.Handlers
	repo     *repository.Repository
	runner   *jobs.Runner
	baseURL  string

	mu         sync.Mutex
	server     *http.Server
	cancelJobs context.CancelFunc
}

// New creates and initializes a new application instance. password is the
// shared login password.
func New(log logger.Logger, cfg config.Config, password string) (*App, error) {
	repo, err := repository.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL(realNetworkProvider{}, cfg.Addr())
	}

	// Initialize services
	renderer := services.NewElectionPostService(log, cfg.MaxPostLength)
	statements := services.NewStatementService(log)
	lists := services.NewCategoryListService(log, repo)
	times := services.NewElectionTime(log, repo, lists)
	notifier := services.NewNotifier(log, repo)
	elections := services.NewElectionService(log, repo, services.ElectionConfig{Enabled: cfg.ElectionsEnabled}, renderer, lists, times, notifier)
	nominations := services.NewNominationService(log, repo, services.NominationConfig{MinTrustLevel: cfg.SelfNominationMinTrust}, statements, renderer, times, elections)
	posts := services.NewPostService(log, repo, statements, renderer)
	polls := services.NewPollService(log, repo, elections, times)

	// Initialize WebSocket hub with DI
	hub := websocket.New(log, lists)
	hub.Start()
	lists.SetBroadcaster(hub)
	times.SetBroadcaster(hub)
	elections.SetBroadcaster(hub)
	nominations.SetBroadcaster(hub)
	posts.SetBroadcaster(hub)
	polls.SetBroadcaster(hub)

	runner := jobs.NewRunner(log, repo, cfg.JobInterval)
	runner.RegisterElectionHandlers(elections, lists)

	sessionAuth := auth.New(cfg.JWTSecret, password, repo)

	h := handlers.New(
		elections,
		nominations,
		times,
		lists,
		posts,
		polls,
		notifier,
		sessionAuth,
		hub,
		log,
		handlers.Options{
			AdminModerator:     cfg.AdminModerator,
			BaseURL:            baseURL,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
		},
	)

	return &App{
		log:      log,
		cfg:      cfg,
		handlers: h,
		repo:     repo,
		runner:   runner,
		baseURL:  baseURL,
	}, nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Repository exposes the store for seeding
func (a *App) Repository() *repository.Repository {
	return a.repo
}

// BaseURL is the public URL share links point at
func (a *App) BaseURL() string {
	return a.baseURL
}

// StartJobs runs the scheduled job loop in the background. It does nothing
// when elections are disabled or the loop is already running.
func (a *App) StartJobs() {
	if !a.cfg.ElectionsEnabled {
		a.log.Info("Elections disabled, scheduled jobs will not run")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelJobs != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancelJobs = cancel
	go a.runner.Start(ctx)
}

// Close performs graceful shutdown of app resources
func (a *App) Close() {
	a.mu.Lock()
	cancel := a.cancelJobs
	a.cancelJobs = nil
	server := a.server
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if server != nil {
		server.Shutdown(context.Background())
	}
}

// Run starts the scheduled jobs and the HTTP server. It returns nil once
// Close has shut the server down.
func (a *App) Run(addr string) error {
	a.StartJobs()

	server := &http.Server{Addr: addr, Handler: a.Router()}
	a.mu.Lock()
	a.server = server
	a.mu.Unlock()

	a.log.Info("Server starting", "addr", addr, "url", a.baseURL)
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// defaultBaseURL builds a share link base from the detected LAN address
func defaultBaseURL(provider networkProvider, addr string) string {
	return fmt.Sprintf("http://%s%s", getPreferredIP(provider), addr)
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

// realInterface wraps a real net.Interface
type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider is an interface for getting network interfaces (for testing)
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

// realNetworkProvider implements networkProvider using actual net package
type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the best IPv4 address for LAN access, preferring
// private ranges. Falls back to localhost.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP
	for _, iface := range ifaces {
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		s := ip.String()
		if strings.HasPrefix(s, "192.168.") || strings.HasPrefix(s, "10.") || isPrivate172(ip) {
			return s
		}
	}
	if len(candidates) > 0 {
		return candidates[0].String()
	}
	return "localhost"
}

// isPrivate172 checks if IP is in 172.16.0.0/12 range
func isPrivate172(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31
	}
	return false
}

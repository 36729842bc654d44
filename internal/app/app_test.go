package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abrezinsky/forumelections/internal/config"
	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/services"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.DBPath = ":memory:"
	cfg.BaseURL = "http://forum.test"
	cfg.JWTSecret = "test-secret"
	return cfg
}

func createTestApp(t *testing.T) *App {
	t.Helper()
	app, err := New(logger.Discard(), testConfig(), "test-password")
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	t.Cleanup(app.Close)
	return app
}

func TestNew_InitializesApp(t *testing.T) {
	app := createTestApp(t)

	if app.handlers == nil {
		t.Error("expected handlers to be initialized")
	}
	if app.repo == nil {
		t.Error("expected repo to be initialized")
	}
	if app.runner == nil {
		t.Error("expected job runner to be initialized")
	}
	if app.BaseURL() != "http://forum.test" {
		t.Errorf("expected configured base URL, got %q", app.BaseURL())
	}
}

func TestNew_FailsWithBadDBPath(t *testing.T) {
	cfg := testConfig()
	cfg.DBPath = "/nonexistent/path/db.sqlite"

	_, err := New(logger.Discard(), cfg, "test-password")

	if err == nil {
		t.Error("expected error for invalid db path")
	}
}

func TestNew_DefaultBaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.BaseURL = ""
	cfg.Port = 9090

	app, err := New(logger.Discard(), cfg, "test-password")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	if !strings.HasPrefix(app.BaseURL(), "http://") || !strings.HasSuffix(app.BaseURL(), ":9090") {
		t.Errorf("unexpected default base URL %q", app.BaseURL())
	}
}

func TestSeed(t *testing.T) {
	app := createTestApp(t)
	ctx := context.Background()

	categoryID, err := Seed(ctx, logger.Discard(), app.Repository())
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	category, err := app.repo.GetCategory(ctx, categoryID)
	if err != nil {
		t.Fatalf("GetCategory failed: %v", err)
	}
	if !category.ForElections {
		t.Error("expected seeded category to be enabled for elections")
	}

	system, err := app.repo.GetUserByUsername(ctx, services.SystemUsername)
	if err != nil {
		t.Fatalf("expected system user: %v", err)
	}
	if !system.Admin {
		t.Error("expected system user to be an admin")
	}
	mods, err := app.repo.ListModerators(ctx)
	if err != nil {
		t.Fatalf("ListModerators failed: %v", err)
	}
	if len(mods) == 0 {
		t.Error("expected a seeded moderator")
	}

	// Seeding again keeps existing accounts
	if _, err := Seed(ctx, logger.Discard(), app.Repository()); err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}
}

// TestApp_ElectionFlow drives an election through the HTTP API of a fully
// wired app
func TestApp_ElectionFlow(t *testing.T) {
	app := createTestApp(t)
	ctx := context.Background()
	categoryID, err := Seed(ctx, logger.Discard(), app.Repository())
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	server := httptest.NewServer(app.Router())
	defer server.Close()

	login := func(username string) string {
		var resp struct {
			Token string `json:"token"`
		}
		status := call(t, server, http.MethodPost, "/session", "", map[string]string{
			"username": username,
			"password": "test-password",
		}, &resp)
		if status != http.StatusOK {
			t.Fatalf("login as %s failed with %d", username, status)
		}
		return resp.Token
	}
	admin := login("admin")
	alice := login("alice")
	bob := login("bob")

	var created struct {
		URL string `json:"url"`
	}
	status := call(t, server, http.MethodPost, "/election/create", admin, map[string]interface{}{
		"category_id":             categoryID,
		"position":                "Moderator",
		"self_nomination_allowed": true,
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create failed with %d", status)
	}
	var topicID int64
	if _, err := fmt.Sscanf(created.URL[strings.LastIndex(created.URL, "/")+1:], "%d", &topicID); err != nil {
		t.Fatalf("could not parse topic id from %q", created.URL)
	}

	for _, token := range []string{alice, bob} {
		if status := call(t, server, http.MethodPost, "/election/nomination", token, map[string]int64{"topic_id": topicID}, nil); status != http.StatusOK {
			t.Fatalf("self nomination failed with %d", status)
		}
	}

	if status := call(t, server, http.MethodPut, "/election/start-poll", admin, map[string]int64{"topic_id": topicID}, nil); status != http.StatusOK {
		t.Fatalf("start poll failed with %d", status)
	}

	var view struct {
		Status    int      `json:"status"`
		Usernames []string `json:"usernames"`
	}
	if status := call(t, server, http.MethodGet, fmt.Sprintf("/election/%d", topicID), "", nil, &view); status != http.StatusOK {
		t.Fatalf("get election failed with %d", status)
	}
	if view.Status != 2 {
		t.Errorf("expected poll status 2, got %d", view.Status)
	}
	if len(view.Usernames) != 2 || view.Usernames[0] != "alice" || view.Usernames[1] != "bob" {
		t.Errorf("expected nominees [alice bob], got %v", view.Usernames)
	}
}

func call(t *testing.T, server *httptest.Server, method, path, token string, body, out interface{}) int {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
	}
	return resp.StatusCode
}

func TestApp_StartJobs(t *testing.T) {
	app := createTestApp(t)

	app.StartJobs()
	app.StartJobs()
	if app.cancelJobs == nil {
		t.Fatal("expected job loop to be running")
	}

	app.Close()
	if app.cancelJobs != nil {
		t.Error("expected Close to stop the job loop")
	}
	// Calling Close multiple times should be safe
	app.Close()
}

func TestApp_StartJobs_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.ElectionsEnabled = false
	app, err := New(logger.Discard(), cfg, "test-password")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	app.StartJobs()

	if app.cancelJobs != nil {
		t.Error("expected no job loop with elections disabled")
	}
}

func TestApp_Run_StopsOnClose(t *testing.T) {
	app := createTestApp(t)

	done := make(chan error, 1)
	go func() {
		done <- app.Run("127.0.0.1:0")
	}()

	// Wait for the server to be registered before closing it
	deadline := time.Now().Add(2 * time.Second)
	for {
		app.mu.Lock()
		started := app.server != nil
		app.mu.Unlock()
		if started || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	app.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil after Close, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestDefaultBaseURL(t *testing.T) {
	provider := mockNetworkProvider{
		interfaces: []networkInterface{mockInterface{
			flags: net.FlagUp,
			addrs: []net.Addr{&net.IPNet{IP: net.ParseIP("10.1.2.3"), Mask: net.CIDRMask(8, 32)}},
		}},
	}

	if got := defaultBaseURL(provider, ":8081"); got != "http://10.1.2.3:8081" {
		t.Errorf("expected http://10.1.2.3:8081, got %q", got)
	}
	if got := defaultBaseURL(mockNetworkProvider{err: net.ErrClosed}, ":80"); got != "http://localhost:80" {
		t.Errorf("expected localhost fallback, got %q", got)
	}
}

func TestIsPrivate172(t *testing.T) {
	tests := []struct {
		ip       string
		expected bool
	}{
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"172.15.0.1", false},
		{"172.32.0.1", false},
		{"192.168.1.1", false},
		{"::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := isPrivate172(net.ParseIP(tt.ip)); got != tt.expected {
				t.Errorf("isPrivate172(%s) = %v, want %v", tt.ip, got, tt.expected)
			}
		})
	}
	if isPrivate172(nil) {
		t.Error("isPrivate172(nil) should be false")
	}
}

// mockInterface implements networkInterface for testing
type mockInterface struct {
	flags net.Flags
	addrs []net.Addr
	err   error
}

func (m mockInterface) Flags() net.Flags {
	return m.flags
}

func (m mockInterface) Addrs() ([]net.Addr, error) {
	return m.addrs, m.err
}

// mockNetworkProvider implements networkProvider for testing
type mockNetworkProvider struct {
	interfaces []networkInterface
	err        error
}

func (m mockNetworkProvider) Interfaces() ([]networkInterface, error) {
	return m.interfaces, m.err
}

func TestGetPreferredIP(t *testing.T) {
	ipNet := func(s string) net.Addr {
		return &net.IPNet{IP: net.ParseIP(s), Mask: net.CIDRMask(24, 32)}
	}

	tests := []struct {
		name     string
		provider mockNetworkProvider
		want     string
	}{
		{
			name:     "interfaces error",
			provider: mockNetworkProvider{err: net.ErrClosed},
			want:     "localhost",
		},
		{
			name: "addrs error",
			provider: mockNetworkProvider{interfaces: []networkInterface{
				mockInterface{flags: net.FlagUp, err: net.ErrClosed},
			}},
			want: "localhost",
		},
		{
			name: "interface down",
			provider: mockNetworkProvider{interfaces: []networkInterface{
				mockInterface{addrs: []net.Addr{ipNet("192.168.1.5")}},
			}},
			want: "localhost",
		},
		{
			name: "ip addr",
			provider: mockNetworkProvider{interfaces: []networkInterface{
				mockInterface{flags: net.FlagUp, addrs: []net.Addr{&net.IPAddr{IP: net.ParseIP("192.168.1.100")}}},
			}},
			want: "192.168.1.100",
		},
		{
			name: "private preferred over public",
			provider: mockNetworkProvider{interfaces: []networkInterface{
				mockInterface{flags: net.FlagUp, addrs: []net.Addr{ipNet("8.8.8.8"), ipNet("172.20.0.4")}},
			}},
			want: "172.20.0.4",
		},
		{
			name: "public fallback",
			provider: mockNetworkProvider{interfaces: []networkInterface{
				mockInterface{flags: net.FlagUp, addrs: []net.Addr{ipNet("8.8.8.8")}},
			}},
			want: "8.8.8.8",
		},
		{
			name: "loopback and ipv6 skipped",
			provider: mockNetworkProvider{interfaces: []networkInterface{
				mockInterface{flags: net.FlagUp, addrs: []net.Addr{ipNet("127.0.0.1"), &net.IPNet{IP: net.ParseIP("fe80::1")}, ipNet("192.168.1.50")}},
			}},
			want: "192.168.1.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getPreferredIP(tt.provider); got != tt.want {
				t.Errorf("getPreferredIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetPreferredIP_Real(t *testing.T) {
	ip := getPreferredIP(realNetworkProvider{})

	if ip == "" {
		t.Fatal("expected non-empty IP")
	}
	if ip != "localhost" && net.ParseIP(ip) == nil {
		t.Errorf("expected valid IP, got: %s", ip)
	}
}

package config

import (
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil, envMap(nil))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Port != 8081 {
		t.Errorf("expected default port 8081, got %d", cfg.Port)
	}
	if cfg.DBPath != "elections.db" {
		t.Errorf("expected default db path, got %q", cfg.DBPath)
	}
	if !cfg.ElectionsEnabled {
		t.Error("expected elections to be enabled by default")
	}
	if cfg.AdminModerator {
		t.Error("expected admin-moderator to be off by default")
	}
	if cfg.JobInterval != time.Minute {
		t.Errorf("expected 1m job interval, got %s", cfg.JobInterval)
	}
}

func TestParse_EnvFallback(t *testing.T) {
	env := envMap(map[string]string{
		"PORT":                      "9000",
		"DB_PATH":                   "/data/e.db",
		"ELECTIONS_ADMIN_MODERATOR": "true",
		"ELECTIONS_MIN_TRUST":       "2",
		"JOB_INTERVAL":              "15s",
	})

	cfg, err := Parse(nil, env)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port from env, got %d", cfg.Port)
	}
	if cfg.DBPath != "/data/e.db" {
		t.Errorf("expected db path from env, got %q", cfg.DBPath)
	}
	if !cfg.AdminModerator {
		t.Error("expected admin-moderator from env")
	}
	if cfg.SelfNominationMinTrust != 2 {
		t.Errorf("expected min trust 2, got %d", cfg.SelfNominationMinTrust)
	}
	if cfg.JobInterval != 15*time.Second {
		t.Errorf("expected 15s job interval, got %s", cfg.JobInterval)
	}
}

func TestParse_FlagsBeatEnv(t *testing.T) {
	env := envMap(map[string]string{"PORT": "9000", "ELECTIONS_ENABLED": "true"})

	cfg, err := Parse([]string{"-port", "7000", "-elections-enabled=false"}, env)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Port != 7000 {
		t.Errorf("expected flag port 7000, got %d", cfg.Port)
	}
	if cfg.ElectionsEnabled {
		t.Error("expected flag to disable elections")
	}
}

func TestParse_InvalidEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"port", map[string]string{"PORT": "eighty"}, "PORT"},
		{"bool", map[string]string{"ELECTIONS_ENABLED": "maybe"}, "ELECTIONS_ENABLED"},
		{"duration", map[string]string{"JOB_INTERVAL": "soon"}, "JOB_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(nil, envMap(tt.env))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error to mention %s, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"db", func(c *Config) { c.DBPath = "" }},
		{"post length", func(c *Config) { c.MaxPostLength = 10 }},
		{"interval", func(c *Config) { c.JobInterval = 0 }},
		{"rate", func(c *Config) { c.RateLimitPerMinute = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := Default()
	if cfg.Addr() != ":8081" {
		t.Errorf("unexpected addr %q", cfg.Addr())
	}
}

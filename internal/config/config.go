package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime settings for the elections server
type Config struct {
	Port      int
	DBPath    string
	Password  string
	JWTSecret string
	LogLevel  string
	LogFormat string
	BaseURL   string

	// ElectionsEnabled gates the scheduled poll jobs
	ElectionsEnabled bool
	// AdminModerator lets moderators manage elections, not only admins
	AdminModerator         bool
	SelfNominationMinTrust int
	MaxPostLength          int

	JobInterval        time.Duration
	RateLimitPerMinute int
	Seed               bool
	ShowVersion        bool
}

// Default returns the settings used when nothing is configured
func Default() Config {
	return Config{
		Port:                   8081,
		DBPath:                 "elections.db",
		LogLevel:               "info",
		LogFormat:              "text",
		ElectionsEnabled:       true,
		SelfNominationMinTrust: 1,
		MaxPostLength:          32000,
		JobInterval:            time.Minute,
		RateLimitPerMinute:     30,
	}
}

// Load reads a .env file if one exists, then parses args on top of the
// environment.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse(args, os.Getenv)
}

// Parse builds a Config from command line flags. Flags that are not given
// fall back to the matching environment variable, then to Default.
func Parse(args []string, getenv func(string) string) (Config, error) {
	cfg := Default()
	fs := flag.NewFlagSet("elections", flag.ContinueOnError)

	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port (PORT)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (DB_PATH)")
	fs.StringVar(&cfg.Password, "password", "", "login password shared by seeded accounts (ELECTIONS_PASSWORD)")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "session signing secret (JWT_SECRET)")
	fs.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "log level: debug, info, warn, error (LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "logformat", cfg.LogFormat, "log format: text or json (LOG_FORMAT)")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "public forum URL used in share links (BASE_URL)")
	fs.BoolVar(&cfg.ElectionsEnabled, "elections-enabled", cfg.ElectionsEnabled, "run scheduled poll transitions (ELECTIONS_ENABLED)")
	fs.BoolVar(&cfg.AdminModerator, "admin-moderator", false, "allow moderators to manage elections (ELECTIONS_ADMIN_MODERATOR)")
	fs.IntVar(&cfg.SelfNominationMinTrust, "min-trust", cfg.SelfNominationMinTrust, "minimum trust level to self nominate (ELECTIONS_MIN_TRUST)")
	fs.IntVar(&cfg.MaxPostLength, "max-post-length", cfg.MaxPostLength, "maximum post length (MAX_POST_LENGTH)")
	fs.DurationVar(&cfg.JobInterval, "job-interval", cfg.JobInterval, "scheduled job poll interval (JOB_INTERVAL)")
	fs.IntVar(&cfg.RateLimitPerMinute, "rate-limit", cfg.RateLimitPerMinute, "nomination requests per minute per user (RATE_LIMIT_PER_MINUTE)")
	fs.BoolVar(&cfg.Seed, "seed", false, "create demo users and an elections category")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "show version and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var errs []error
	envInt := func(flagName, key string, dst *int) {
		if set[flagName] {
			return
		}
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s env variable: %q", key, v))
				return
			}
			*dst = n
		}
	}
	envString := func(flagName, key string, dst *string) {
		if set[flagName] {
			return
		}
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	envBool := func(flagName, key string, dst *bool) {
		if set[flagName] {
			return
		}
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s env variable: %q", key, v))
				return
			}
			*dst = b
		}
	}

	envInt("port", "PORT", &cfg.Port)
	envString("db", "DB_PATH", &cfg.DBPath)
	envString("password", "ELECTIONS_PASSWORD", &cfg.Password)
	envString("jwt-secret", "JWT_SECRET", &cfg.JWTSecret)
	envString("loglevel", "LOG_LEVEL", &cfg.LogLevel)
	envString("logformat", "LOG_FORMAT", &cfg.LogFormat)
	envString("base-url", "BASE_URL", &cfg.BaseURL)
	envBool("elections-enabled", "ELECTIONS_ENABLED", &cfg.ElectionsEnabled)
	envBool("admin-moderator", "ELECTIONS_ADMIN_MODERATOR", &cfg.AdminModerator)
	envInt("min-trust", "ELECTIONS_MIN_TRUST", &cfg.SelfNominationMinTrust)
	envInt("max-post-length", "MAX_POST_LENGTH", &cfg.MaxPostLength)
	envInt("rate-limit", "RATE_LIMIT_PER_MINUTE", &cfg.RateLimitPerMinute)
	if !set["job-interval"] {
		if v := getenv("JOB_INTERVAL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid JOB_INTERVAL env variable: %q", v))
			} else {
				cfg.JobInterval = d
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("database path required (use -db or DB_PATH env)")
	}
	if c.MaxPostLength < 100 {
		return fmt.Errorf("max post length too small: %d", c.MaxPostLength)
	}
	if c.JobInterval <= 0 {
		return fmt.Errorf("job interval must be positive: %s", c.JobInterval)
	}
	if c.RateLimitPerMinute < 1 {
		return fmt.Errorf("rate limit must be at least 1: %d", c.RateLimitPerMinute)
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

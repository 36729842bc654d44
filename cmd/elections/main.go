package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/abrezinsky/forumelections/internal/app"
	"github.com/abrezinsky/forumelections/internal/auth"
	"github.com/abrezinsky/forumelections/internal/config"
	"github.com/abrezinsky/forumelections/internal/logger"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	green  = "\033[32m"
	bold   = "\033[1m"
)

var (
	version = "dev"
)

// showBanner prints the startup logo
func showBanner() {
	width := 52
	border := strings.Repeat("═", width)

	logo := []string{
		"   _____ _           _   _                   ",
		"  | ____| | ___  ___| |_(_) ___  _ __  ___   ",
		"  |  _| | |/ _ \\/ __| __| |/ _ \\| '_ \\/ __|  ",
		"  | |___| |  __/ (__| |_| | (_) | | | \\__ \\  ",
		"  |_____|_|\\___|\\___|\\__|_|\\___/|_| |_|___/  ",
	}

	fmt.Printf("\n  %s╔%s╗%s\n", cyan, border, reset)
	for _, line := range logo {
		for len(line) < width {
			line += " "
		}
		fmt.Printf("  %s║%s%s%s║%s\n", cyan, yellow, line, cyan, reset)
	}
	fmt.Printf("  %s╚%s╝%s\n\n", cyan, border, reset)
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	if cfg.ShowVersion {
		fmt.Printf("elections %s\n", version)
		os.Exit(0)
	}

	if cfg.LogFormat != string(logger.FormatJSON) {
		showBanner()
	}

	appLog := logger.NewWithOptions(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
	})

	password := cfg.Password
	if password == "" {
		password = auth.GeneratePassword()
		appLog.Info("Login password", "password", password)
	}

	a, err := app.New(appLog, cfg, password)
	if err != nil {
		log.Fatal("Failed to initialize application: ", err)
	}
	defer a.Repository().Close()

	if cfg.Seed {
		categoryID, err := app.Seed(context.Background(), appLog, a.Repository())
		if err != nil {
			log.Fatal("Failed to seed database: ", err)
		}
		fmt.Printf("%s%s  Seeded category %d%s\n", bold, green, categoryID, reset)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		appLog.Info("Shutting down", "signal", sig.String())
		a.Close()
	}()

	if err := a.Run(cfg.Addr()); err != nil {
		appLog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

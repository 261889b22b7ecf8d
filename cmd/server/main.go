package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"landtrust/internal/platform/config"
	"landtrust/internal/platform/httpserver"
	"landtrust/internal/platform/logger"
	"landtrust/internal/platform/metrics"
)

// main wires dependencies and runs the HTTP server until SIGINT or SIGTERM.
// Business logic lives in the internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "landtrust: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	infra, err := openInfra(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer infra.Close()

	app, err := buildApp(ctx, cfg, infra, log, m)
	if err != nil {
		return err
	}

	log.Info("starting landtrust",
		"addr", cfg.Addr,
		"env", cfg.Env,
		"postgres", infra.db != nil,
		"redis", infra.redis != nil,
		"oidc", cfg.Auth.OIDCEnabled(),
		"staff_allowlist", app.allowlistSize,
	)
	return httpserver.Serve(ctx, httpserver.New(cfg.Addr, app.router), log)
}

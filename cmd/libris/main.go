/*
main.go - Application entry point

PURPOSE:
  Starts the library desk. By default runs the interactive console on
  stdin/stdout; with -serve it exposes the same library over the local JSON
  API instead. Handles configuration, dependency wiring, and graceful
  shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load config (defaults, file, LIBRIS_* env)
  2. Build the zap logger
  3. Open the configured backend (file, sqlite or pebble) under data_dir
  4. Open the library and seed the admin credential if absent
  5. Run the console, or start the HTTP server and the overdue monitor

COMMAND-LINE FLAGS:
  -config  Config file path (default: ./libris.* if present)
  -serve   Serve the JSON API instead of the console
  -addr    Listen address, overrides http.addr

GRACEFUL SHUTDOWN:
  With -serve, on SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the overdue monitor
  4. Close the backend
  5. Exit

EXAMPLES:
  # Console with the JSON file backend in ./data
  ./libris

  # API on port 3000, sqlite backend
  LIBRIS_BACKEND=sqlite ./libris -serve -addr=:3000

SEE ALSO:
  - config/config.go: Keys and defaults
  - console/console.go: Menus
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/libris/api"
	"github.com/warp/libris/config"
	"github.com/warp/libris/console"
	"github.com/warp/libris/library"
	"github.com/warp/libris/logging"
	"github.com/warp/libris/metrics"
	"github.com/warp/libris/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "libris:", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	configPath := flag.String("config", "", "config file path")
	serve := flag.Bool("serve", false, "serve the JSON API instead of the console")
	addr := flag.String("addr", "", "HTTP listen address (overrides http.addr)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Initialize store
	backend, err := store.Open(cfg.Backend, cfg.DataDir, logger)
	if err != nil {
		return err
	}

	// The console keeps the default SIGINT behavior; only -serve traps it.
	ctx := context.Background()

	opts, err := cfg.LibraryOptions()
	if err != nil {
		backend.Close()
		return err
	}
	m := metrics.New()
	opts = append(opts, library.WithLogger(logger), library.WithMetrics(m))

	lib, err := library.Open(ctx, backend, opts...)
	if err != nil {
		backend.Close()
		return err
	}
	defer func() {
		if err := lib.Close(); err != nil {
			logger.Error("close backend", zap.Error(err))
		}
	}()

	auth := library.NewAuthenticator(backend, library.WithAuthLogger(logger))
	if _, err := auth.EnsureDefault(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		return fmt.Errorf("seed admin credential: %w", err)
	}

	if !*serve {
		return console.New(lib, auth, os.Stdin, os.Stdout, console.WithLogger(logger)).Run(ctx)
	}
	return serveAPI(ctx, cfg, lib, auth, m, logger)
}

func serveAPI(ctx context.Context, cfg *config.Config, lib *library.Library, auth *library.Authenticator, m *metrics.Metrics, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := api.NewHandler(lib, auth, logger)

	monitor := api.NewOverdueMonitor(handler, logger)
	monitor.Observer = m
	monitor.Start()
	defer monitor.Stop()

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Metrics:        m.Handler(),
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.HTTP.Addr), zap.String("backend", cfg.Backend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// Wait for interrupt signal
	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// Tarka: software requirement hierarchy server.
//
// Tarka stores requirements as a strict six-level tree (Organization →
// Project → Epic → Component → Feature → Requirement) with typed
// dependency edges between nodes, and serves the graph to AI coding
// tools over MCP and to everything else over HTTP.
//
// Usage:
//
//	tarka serve        # Start MCP server (stdio transport)
//	tarka serve-http   # Start the REST API server
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/tarka-io/tarka/internal/api"
	"github.com/tarka-io/tarka/internal/config"
	tarkaserver "github.com/tarka-io/tarka/internal/server"
	"github.com/tarka-io/tarka/internal/service"
	sqlstore "github.com/tarka-io/tarka/internal/storage/sql"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runMCP(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "serve-http":
		if err := runHTTP(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("tarka v%s\n", tarkaserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by both
// serve modes.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	log, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, log, nil
}

// runMCP starts the MCP server on stdio.
func runMCP() error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	s, cleanup, err := tarkaserver.New(cfg, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	log.Info("starting MCP server", zap.String("transport", "stdio"))
	return server.ServeStdio(s)
}

// runHTTP starts the REST API server with graceful shutdown on
// interrupt.
func runHTTP() error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, err := sqlstore.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = store.Close() }()

	svc := service.New(store, log, cfg.Database.OpTimeout)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(svc, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Tarka v%s — software requirement hierarchy server

Usage:
  tarka serve        Start the MCP server (stdio transport)
  tarka serve-http   Start the REST API server

Configuration (environment variables):
  TARKA_DB_DSN       SQLite database path (default: ~/.tarka/tarka.db)
  TARKA_OP_TIMEOUT   Per-operation timeout (default: 5s)
  TARKA_HTTP_HOST    HTTP bind host (default: 0.0.0.0)
  TARKA_HTTP_PORT    HTTP bind port (default: 8080)
  TARKA_LOG_LEVEL    Log level (default: info)

MCP client configuration:

  {
    "mcpServers": {
      "tarka": {
        "command": "tarka",
        "args": ["serve"]
      }
    }
  }
`, tarkaserver.Version)
}

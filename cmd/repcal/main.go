package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	repcal "github.com/meltforce/repcal"
	"github.com/meltforce/repcal/internal/config"
	"github.com/meltforce/repcal/internal/exercises"
	"github.com/meltforce/repcal/internal/mcp"
	"github.com/meltforce/repcal/internal/routine"
	"github.com/meltforce/repcal/internal/server"
	"github.com/meltforce/repcal/internal/state"
	"github.com/meltforce/repcal/internal/storage"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("RepCal starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Run migrations
	dsn := cfg.Storage.DSN
	if cfg.Storage.Driver == "sqlite" {
		dsn = storage.SQLiteDSN(cfg.Storage.DataDir)
	}
	if err := storage.RunMigrations(dsn); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Open the bucket store
	ctx := context.Background()
	var db storage.BucketStore
	switch cfg.Storage.Driver {
	case "postgres":
		db, err = storage.OpenPostgres(ctx, cfg.Storage.DSN)
	default:
		db, err = storage.OpenSQLite(cfg.Storage.DataDir)
	}
	if err != nil {
		log.Error("failed to open bucket store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("bucket store opened", "driver", cfg.Storage.Driver)

	// Load persisted state
	states := state.NewManager(db, cfg.Profiles.Names, log)
	if err := states.Load(ctx); err != nil {
		log.Error("failed to load state", "error", err)
		os.Exit(1)
	}

	// Exercise library
	catalog := exercises.New(log)
	if err := catalog.Load(cfg.Library.ExercisesPath); err != nil {
		log.Error("failed to load exercise library", "error", err)
		os.Exit(1)
	}

	// Routine catalog
	routines := routine.NewService(cfg.Library.ManifestURL, catalog, states.UserRoutine, log)
	if err := routines.LoadManifest(ctx); err != nil {
		log.Warn("routine manifest unavailable", "error", err)
	}

	// Create server
	srv := server.New(states, routines, catalog, cfg.Auth.APIKey, log)

	// MCP endpoint for assistants
	mcpSrv := mcp.New(states, routines, catalog, Version, log)
	srv.SetMCP(mcpserver.NewStreamableHTTPServer(mcpSrv))

	// Serve embedded frontend
	webDist, err := fs.Sub(repcal.WebFS, "web/dist")
	if err != nil {
		log.Error("failed to load embedded frontend", "error", err)
		os.Exit(1)
	}
	srv.SetFrontend(webDist)

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	if err := states.Close(shutdownCtx); err != nil {
		log.Error("final flush failed", "error", err)
	}
	log.Info("server stopped")
}

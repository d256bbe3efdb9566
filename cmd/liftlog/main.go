package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/draft"
	"github.com/claude/liftlog/internal/progress"
	"github.com/claude/liftlog/internal/server"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("LiftLog starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Backing store
	var store server.Store
	switch cfg.Database.Driver {
	case config.DriverMemory:
		if *migrateOnly {
			log.Info("migrate-only: memory driver has no schema")
			return
		}
		store = storage.NewMemoryStore()
		log.Info("using in-memory store")
	default:
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn, "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")

		if *migrateOnly {
			log.Info("migrate-only: exiting")
			return
		}

		db, err := storage.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = db
		log.Info("database connected")
	}

	// Draft cache
	var drafts draft.Store = draft.NewMemoryStore()
	if cfg.Draft.Dir != "" {
		sq, err := draft.OpenSQLite(cfg.Draft.Dir)
		if err != nil {
			log.Error("failed to open draft cache", "dir", cfg.Draft.Dir, "error", err)
			os.Exit(1)
		}
		defer func() { _ = sq.Close() }()
		drafts = sq
		log.Info("draft cache opened", "dir", cfg.Draft.Dir)
	}

	opts := session.DefaultOptions()
	opts.Drafts = drafts
	opts.Tracker = progress.NewLogTracker(log)
	opts.AutoLock = cfg.Engine.AutoLockEnabled()
	opts.FallbackCategory = cfg.Engine.FallbackCategory
	opts.FinishConcurrency = cfg.Engine.FinishConcurrency

	sessions := session.NewManager(store, opts, log)
	srv := server.New(store, sessions, cfg.Auth.APIKey, log)

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
		uid, err := store.GetOrCreateUser(ctx, cfg.Auth.DevUser, cfg.Auth.DevUser)
		if err != nil {
			log.Error("failed to create dev user", "login", cfg.Auth.DevUser, "error", err)
			os.Exit(1)
		}
		srv.SetDevUser(uid, server.UserInfo{Login: cfg.Auth.DevUser, DisplayName: cfg.Auth.DevUser})

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)", "user", cfg.Auth.DevUser)
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

	// Let queued set writes land before the store closes.
	sessions.Wait()
	log.Info("server stopped")
}

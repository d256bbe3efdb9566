package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/draft"
	"github.com/claude/liftlog/internal/mcp"
	"github.com/claude/liftlog/internal/storage"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	remoteURL := flag.String("url", "", "LiftLog server URL (e.g. http://liftlog.tailnet.ts.net); reads the database directly when empty")
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	flag.Parse()

	// stdout carries the MCP protocol.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds mcp.DataSource
	if *remoteURL != "" {
		ds = mcp.NewHTTPClient(*remoteURL)
		log.Info("LiftLog MCP starting", "version", Version, "mode", "remote", "url", *remoteURL)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		if cfg.Database.Driver != config.DriverPostgres {
			log.Error("local mode needs a postgres database", "driver", cfg.Database.Driver)
			os.Exit(1)
		}

		db, err := storage.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		var drafts draft.Store
		if cfg.Draft.Dir != "" {
			sq, err := draft.OpenSQLite(cfg.Draft.Dir)
			if err != nil {
				log.Error("failed to open draft cache", "dir", cfg.Draft.Dir, "error", err)
				os.Exit(1)
			}
			defer func() { _ = sq.Close() }()
			drafts = sq
		}

		ds = mcp.NewStoreSource(db, drafts)
		log.Info("LiftLog MCP starting", "version", Version, "mode", "local")
	}

	s := mcp.New(ds, Version, log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}

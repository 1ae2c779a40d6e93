// Copyright 2025 Takhin Data, Inc.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joestubbs/tagent/internal/aclstore"
	"github.com/joestubbs/tagent/internal/api"
	"github.com/joestubbs/tagent/internal/audit"
	"github.com/joestubbs/tagent/internal/auth"
	"github.com/joestubbs/tagent/internal/authz"
	"github.com/joestubbs/tagent/internal/config"
	"github.com/joestubbs/tagent/internal/envelope"
	"github.com/joestubbs/tagent/internal/files"
	"github.com/joestubbs/tagent/internal/logging"
	"github.com/joestubbs/tagent/internal/pubkey"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "show version information")
	configPath := flag.String("config", "", "path to settings.yaml (default: <user-config-dir>/tagent/settings.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tagent version %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return
	}
	envelope.Version = version

	path := *configPath
	if path == "" {
		defaultPath, err := config.DefaultSettingsPath()
		if err == nil {
			path = defaultPath
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tagent: load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}).WithComponent("tagent")
	logging.SetDefault(log)

	log.Info("starting tagent", "version", version, "commit", commit, "root_directory", cfg.RootDirectory)

	if err := os.MkdirAll(cfg.RootDirectory, 0o755); err != nil {
		log.Fatal("failed to create root directory", "error", err)
	}

	keySource := resolveKeySource(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	publicKey, err := keySource.Resolve(ctx)
	cancel()
	if err != nil {
		log.Fatal("failed to resolve verification key", "error", err)
	}

	store, err := aclstore.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open ACL store", "error", err)
	}
	defer store.Close()

	auditLogger, err := audit.NewLogger(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		OutputPath: cfg.Audit.OutputPath,
	})
	if err != nil {
		log.Fatal("failed to open audit logger", "error", err)
	}
	defer auditLogger.Close()

	verifier := auth.New(publicKey)
	engine := authz.New(store)
	gate := files.New(cfg.RootDirectory, engine)
	server := api.New(verifier, engine, store, gate, auditLogger, log)

	addr := fmt.Sprintf("%s:%d", cfg.Address, cfg.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("tagent ready", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatal("server error", "error", err)
	case <-sigCh:
		log.Info("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
			os.Exit(1)
		}
	}

	os.Exit(0)
}

// resolveKeySource picks the configured public key source: a literal
// PEM takes precedence over a remote URL (spec §6 configuration).
func resolveKeySource(cfg *config.Config) pubkey.Source {
	if cfg.PublicKey != "" {
		return pubkey.Literal{PEM: cfg.PublicKey}
	}
	return pubkey.Remote{URL: cfg.PublicKeyURL}
}

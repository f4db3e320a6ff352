package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"printwatch/agent/scanner"
	"printwatch/agent/storage"
	"printwatch/common/config"
	"printwatch/common/logger"
	"printwatch/common/ws"

	"github.com/kardianos/service"
)

const (
	shutdownTimeout = 10 * time.Second
	backupsToKeep   = 3
)

// app holds the long-lived components shared by the HTTP API and the CLI.
type app struct {
	cfg     *AgentConfig
	engine  *scanner.Engine
	scanner *scanner.Scanner
	store   *storage.Store
	hub     *ws.Hub
}

// newApp wires the engine and scanner from cfg. open replaces the SNMP
// transport when non-nil; store may be nil for the one-shot commands.
func newApp(cfg *AgentConfig, store *storage.Store, open scanner.OpenFunc) *app {
	ec := cfg.EngineConfig()
	ec.Open = open
	sc := cfg.ScanConfig()
	sc.Open = open
	return &app{
		cfg:     cfg,
		engine:  scanner.NewEngine(ec),
		scanner: scanner.NewScanner(sc),
		store:   store,
		hub:     ws.NewHub(),
	}
}

// broadcastLog mirrors log entries to websocket subscribers.
func (a *app) broadcastLog(entry logger.LogEntry) {
	a.hub.Broadcast(ws.Message{
		Type:      ws.MessageTypeLogEntry,
		Data:      newLogLine(entry),
		Timestamp: entry.Timestamp,
	})
}

func (a *app) Close() error {
	a.hub.Stop()
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// setupLogger creates the process logger from the logging section and
// installs it as the global logger for library packages.
func setupLogger(cfg config.LoggingConfig, isService bool) *logger.Logger {
	logDir := cfg.Dir
	if logDir == "" && isService {
		logDir = getServiceLogDir()
	}
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "log directory %s unavailable, file logging disabled: %v\n", logDir, err)
			logDir = ""
		}
	}
	l := logger.New(logger.LevelFromString(cfg.Level), logDir, 1000)
	l.SetRotationPolicy(logger.RotationPolicy{
		Enabled:    true,
		MaxSizeMB:  10,
		MaxAgeDays: 7,
		MaxFiles:   5,
	})
	for _, tag := range cfg.TraceTags {
		l.EnableTraceTag(tag)
	}
	logger.Global = l
	storage.SetLogger(l)
	return l
}

// openStore opens the configured database, defaulting the SQLite file to the
// platform data directory.
func openStore(ctx context.Context, cfg *AgentConfig, isService bool) (*storage.Store, error) {
	dataDir := ""
	if cfg.Database.Path == "" && cfg.Database.DSN == "" {
		dir, err := config.GetDataDirectory(isService)
		if err != nil {
			return nil, fmt.Errorf("resolve data directory: %w", err)
		}
		dataDir = dir
	}
	store, err := storage.Open(ctx, cfg.Database, dataDir)
	if err != nil {
		return nil, err
	}
	if store.Dialect().Name() == "sqlite" && store.Path() != "" {
		if err := storage.CleanupOldBackups(store.Path(), backupsToKeep); err != nil && logger.Global != nil {
			logger.Global.Warn("Backup cleanup failed", "path", store.Path(), "error", err)
		}
	}
	return store, nil
}

// serve runs the HTTP API until ctx ends.
func serve(ctx context.Context, cfg *AgentConfig) error {
	isService := !service.Interactive()
	log := setupLogger(cfg.Logging, isService)
	defer log.Close()

	log.Info("PrintWatch Agent starting",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit)

	store, err := openStore(ctx, cfg, isService)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a := newApp(cfg, store, nil)
	defer a.Close()
	log.SetOnLogCallback(a.broadcastLog)
	defer log.SetOnLogCallback(nil)
	log.Info("Database ready", "driver", store.Dialect().Name(), "path", filepath.Base(store.Path()))

	addr := net.JoinHostPort(cfg.Web.Bind, strconv.Itoa(cfg.Web.HTTPPort))
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP API")
	a.hub.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown did not complete", "error", err)
	}
	return nil
}

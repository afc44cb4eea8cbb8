package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/me/timetable/internal/config"
	"github.com/me/timetable/internal/directory"
	"github.com/me/timetable/internal/logging"
	"github.com/me/timetable/internal/notify"
	"github.com/me/timetable/internal/server"
	"github.com/me/timetable/internal/store"
)

func main() {
	cfg, err := config.FromEnv(config.DefaultServerConfig(), ".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, audit, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also append logs to this file")
	flag.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "Database driver (sqlite, postgres)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (default ~/.timetable/timetable.db)")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	flag.StringVar(&cfg.DefaultTenant, "default-tenant", cfg.DefaultTenant, "Tenant for requests without X-Tenant-ID")
	flag.StringVar(&cfg.CalendarFile, "calendar", cfg.CalendarFile, "Period calendar YAML file")
	flag.StringVar(&cfg.InstructorsFile, "instructors", cfg.InstructorsFile, "Instructor directory YAML file")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Publish lifecycle events to this Redis server")
	flag.StringVar(&cfg.RedisChannel, "redis-channel", cfg.RedisChannel, "Redis channel for lifecycle events")
	flag.StringVar(&cfg.WebhookURL, "webhook-url", cfg.WebhookURL, "POST lifecycle events to this URL")
	flag.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Parallel grid writes per batch")
	corsOrigins := flag.String("cors-origins", strings.Join(cfg.CORSOrigins, ","), "Comma-separated allowed CORS origins")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}
	cfg.CORSOrigins = config.SplitList(*corsOrigins)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	var extra []io.Writer
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		extra = append(extra, f)
	}
	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, extra...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open store and run migrations.
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "driver", cfg.DBDriver)

	cal, err := config.LoadCalendar(cfg.CalendarFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "calendar: %v\n", err)
		os.Exit(1)
	}
	logger.Info("calendar loaded", "days", len(cal.Days), "periods", len(cal.Periods), "file", cfg.CalendarFile)

	serverOpts := []server.Option{}
	if cfg.InstructorsFile != "" {
		dir, err := directory.LoadFile(cfg.InstructorsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "instructors: %v\n", err)
			os.Exit(1)
		}
		serverOpts = append(serverOpts, server.WithDirectory(dir))
		logger.Info("instructor directory loaded", "instructors", len(dir.List()))
	}

	// Notification sinks.
	broker := notify.NewBroker()
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger), broker}
	if cfg.RedisAddr != "" {
		rn := notify.NewRedisNotifier(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisChannel)
		if err := rn.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, events will not be published there", "addr", cfg.RedisAddr, "error", err)
		}
		defer rn.Close()
		notifiers = append(notifiers, rn)
		logger.Info("redis notifications enabled", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookRate, cfg.WebhookBurst))
		logger.Info("webhook notifications enabled", "url", cfg.WebhookURL, "rate", cfg.WebhookRate)
	}
	dispatcher := notify.NewDispatcher(notify.Config{
		QueueSize:   cfg.EventQueueSize,
		SendTimeout: cfg.NotifyTimeout,
	}, logger, notifiers...)
	serverOpts = append(serverOpts, server.WithEvents(dispatcher), server.WithBroker(broker))

	srv := server.New(cfg, st, cal, logger, serverOpts...)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Start event delivery in background; Stop drains it after shutdown.
	go func() {
		if err := dispatcher.Start(context.Background()); err != nil {
			logger.Error("dispatcher stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}

	// Deliver queued events after the last request.
	if err := dispatcher.Stop(); err != nil {
		logger.Error("dispatcher stop error", "error", err)
	}
	logger.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (store.Store, error) {
	if cfg.DBDriver == "postgres" {
		return store.NewPostgresStore(ctx, cfg.PostgresDSN, logger)
	}

	// Resolve database path.
	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir := filepath.Join(home, ".timetable")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", dir, err)
		}
		dbPath = filepath.Join(dir, "timetable.db")
	}
	logger.Info("using sqlite", "path", dbPath)
	return store.NewSQLiteStore(dbPath, logger)
}

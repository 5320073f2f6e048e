package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"artizen/internal/api"
	"artizen/internal/auth"
	"artizen/internal/config"
	"artizen/internal/db"
	"artizen/internal/feedcache"
	"artizen/internal/jobs"
	"artizen/internal/logging"
	"artizen/internal/metrics"
	"artizen/internal/ratelimit"
	"artizen/internal/realtime"
)

const serverVersion = "0.1.0-dev"

const demoPassword = "artizen123"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "seed" {
		if err := runSeed(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var (
		configPath = flag.String("config", "", "path to artizen.yaml")
		port       = flag.String("port", "", "HTTP listen port (overrides config)")
		dbPath     = flag.String("db", "", "path to SQLite database (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		logging.Log.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()
	a.scheduler.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.hub.Close()
		if err := server.Shutdown(ctx); err != nil {
			logging.Log.Error("graceful shutdown failed", "err", err)
		}
		a.scheduler.Stop(ctx)
	}()

	logging.Log.Info("artizen-server listening", "addr", server.Addr, "version", serverVersion)
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Log.Error("server error", "err", err)
		os.Exit(1)
	}
	<-shutdownDone
}

// app holds everything the HTTP server needs, wired from configuration.
type app struct {
	database  *sql.DB
	handler   http.Handler
	hub       *realtime.Hub
	scheduler *jobs.Scheduler
	closers   []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &app{database: database}
	a.closers = append(a.closers, func() { _ = database.Close() })

	if err := db.ApplyMigrations(database); err != nil {
		a.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logging.Log.Warn("auth.jwt_secret not set; tokens will not survive a restart")
	}
	if cfg.Auth.AllowEmailHeader {
		logging.Log.Warn("X-User-Email identification is enabled")
	}

	m := metrics.New()
	limiter := ratelimit.NewLimiter()

	var cache feedcache.Cache = feedcache.NewLRU(cfg.Feed.CacheSize, cfg.Feed.CacheTTL)
	if cfg.RedisAddr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rc, err := feedcache.Dial(dialCtx, cfg.RedisAddr, cfg.Feed.CacheTTL)
		cancel()
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		cache = rc
		logging.Log.Info("feed cache using redis", "addr", cfg.RedisAddr)
	}

	a.hub = realtime.NewHub(realtime.HubOptions{
		AllowedOrigins: cfg.WS.AllowedOrigins,
		Authorize:      api.ParticipantAuthorizer(database),
		Observer:       m,
	})
	if cfg.NATSURL != "" {
		bridge, err := realtime.ConnectNATS(realtime.NATSConfig{URL: cfg.NATSURL, ClientName: "artizen-server-" + a.hub.ID()})
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := bridge.Attach(a.hub); err != nil {
			bridge.Close()
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, bridge.Close)
		logging.Log.Info("realtime bridge connected", "url", cfg.NATSURL)
	}

	a.scheduler, err = jobs.New(database, jobs.Options{
		Schedule:        cfg.Retention.Schedule,
		NotificationAge: cfg.Retention.NotificationAge,
		Limiter:         limiter,
		Metrics:         m,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.handler = api.NewRouter(database, api.Options{
		Version:          serverVersion,
		Tokens:           auth.NewTokenManager(secret, cfg.Auth.TokenTTL),
		AllowEmailHeader: cfg.Auth.AllowEmailHeader,
		Hub:              a.hub,
		FeedCache:        cache,
		Metrics:          m,
		Limiter:          limiter,
		FeedDefaultLimit: cfg.Feed.DefaultLimit,
		FeedMaxLimit:     cfg.Feed.MaxLimit,
		ChatDefaultTake:  cfg.Chat.DefaultTake,
		ChatMaxTake:      cfg.Chat.MaxTake,
	})
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func runSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	dbPath := fs.String("db", "./artizen.db", "path to SQLite database")
	password := fs.String("password", demoPassword, "password for the demo users")
	if err := fs.Parse(args); err != nil {
		return err
	}

	database, err := db.Open(*dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.ApplyMigrations(database); err != nil {
		return err
	}
	hash, err := auth.HashPassword(*password)
	if err != nil {
		return err
	}
	if err := db.SeedDemoData(context.Background(), database, hash); err != nil {
		return err
	}
	fmt.Printf("seeded demo data into %s\n", *dbPath)
	return nil
}

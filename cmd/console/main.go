// Package main runs the snipe console headless: it connects to the backend
// event channel, drives popups, sounds and settings, and serves the local
// dashboard and metrics endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"snipe-console/internal/api"
	"snipe-console/internal/capability"
	"snipe-console/internal/config"
	"snipe-console/internal/control"
	"snipe-console/internal/dashboard"
	"snipe-console/internal/dedup"
	"snipe-console/internal/domain"
	"snipe-console/internal/notify"
	"snipe-console/internal/observability"
	"snipe-console/internal/popup"
	"snipe-console/internal/resolver"
	"snipe-console/internal/router"
	"snipe-console/internal/settings"
	"snipe-console/internal/storage"
	"snipe-console/internal/storage/memory"
	pgstore "snipe-console/internal/storage/postgres"
	"snipe-console/internal/storage/sqlite"
	"snipe-console/internal/stream"
)

// Compile-time interface checks
var (
	_ dashboard.Actions   = (*control.Controller)(nil)
	_ control.Backend     = (*api.Client)(nil)
	_ popup.Sniper        = (*api.Client)(nil)
	_ popup.Preferences   = (*settings.Engine)(nil)
	_ router.Settings     = (*settings.Engine)(nil)
	_ router.AdminLoader  = (*settings.Lists)(nil)
	_ stream.FrameHandler = (*router.Router)(nil)
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("console stopped")
	}
	log.Info().Msg("console stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	cache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	buf := notify.NewBuffer()
	buf.SetListener(printNotification)

	client := api.NewClient(cfg.BackendURL,
		api.WithTimeout(cfg.APITimeout),
		api.WithLogger(log.Logger),
	)
	engine := settings.NewEngine(client, cache, buf)

	feed := router.NewFeed(router.DefaultFeedCapacity)
	status := router.NewStatusBoard()

	var player capability.Player
	if !cfg.SoundDisabled {
		player = capability.SelectPlayer(cfg.SoundDir, log.Logger)
	}
	alerter := capability.NewAlerter(player, capability.NewBellSynth(os.Stderr, log.Logger), log.Logger)

	orch := popup.New(popup.Deps{
		Guard:    dedup.NewGuard(nil),
		Resolver: resolver.New(client, nil),
		Prefs:    engine,
		Sniper:   client,
		Opener:   capability.SelectOpener(cfg.BrowserDisabled, log.Logger),
		Notifier: buf,
	}, popup.WithResolvedHook(func(tokenAddress, bondingCurve string) {
		feed.UpdateBondingCurve(tokenAddress, bondingCurve)
	}))

	rt := router.New(router.Deps{
		Popups:   orch,
		Settings: engine,
		Admins:   engine.Lists(),
		Sound:    alerter,
		Notifier: buf,
		Feed:     feed,
		Status:   status,
	})

	ctrl := control.New(control.Deps{
		Backend:  client,
		Settings: engine,
		Admins:   engine.Lists(),
		Popups:   orch,
		Notifier: buf,
		Feed:     feed,
		Status:   status,
	})

	streamCfg := stream.DefaultConfig()
	streamCfg.ReconnectDelay = cfg.ReconnectDelay
	mgr := stream.NewManager(cfg.BackendWSURL, rt, stream.WithConfig(streamCfg))

	// Cached settings first, then the backend's copy. A backend that is down
	// leaves the cached values in place.
	engine.LoadCache(ctx)
	if err := ctrl.PollStatus(ctx); err != nil {
		log.Warn().Err(err).Msg("initial status fetch failed")
	}
	if err := engine.Lists().LoadAll(ctx); err != nil {
		log.Warn().Err(err).Msg("admin lists not loaded")
	}

	if cfg.StatusPollSpec != "" {
		sched := cron.New()
		if _, err := sched.AddFunc(cfg.StatusPollSpec, func() {
			pctx, cancel := context.WithTimeout(ctx, cfg.APITimeout)
			defer cancel()
			if err := ctrl.PollStatus(pctx); err != nil {
				log.Debug().Err(err).Msg("status poll failed")
			}
		}); err != nil {
			return fmt.Errorf("schedule status poll: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return mgr.Run(gctx)
	})

	if cfg.DashboardAddr != "" {
		dash := dashboard.New(dashboard.Deps{
			Actions:        ctrl,
			Notifications:  buf,
			Feed:           feed,
			Status:         status,
			Connection:     func() string { return string(mgr.Status()) },
			AllowedOrigins: cfg.DashboardOrigins,
		})
		g.Go(func() error {
			return dash.Run(gctx, cfg.DashboardAddr)
		})
	}

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddr)
		})
	}

	log.Info().
		Str("backend", cfg.BackendURL).
		Str("events", cfg.BackendWSURL).
		Str("cache", cfg.CacheDriver).
		Str("dashboard", cfg.DashboardAddr).
		Msg("console started")

	return g.Wait()
}

// openCache builds the configured settings cache and its cleanup func.
func openCache(ctx context.Context, cfg *config.Config) (storage.SettingsCache, func(), error) {
	switch cfg.CacheDriver {
	case config.CacheMemory:
		return memory.NewSettingsCache(), func() {}, nil

	case config.CacheSQLite:
		c, err := sqlite.Open(cfg.CacheSQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		return c, func() {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Msg("close sqlite cache")
			}
		}, nil

	case config.CachePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pgstore.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return pgstore.NewSettingsCache(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown cache driver %q", config.ErrInvalid, cfg.CacheDriver)
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
)

// printNotification echoes each notification to stdout.
func printNotification(n domain.Notification) {
	c := infoColor
	switch n.Type {
	case domain.NotifySuccess:
		c = successColor
	case domain.NotifyError:
		c = errorColor
	case domain.NotifyWarning:
		c = warningColor
	}
	ts := time.UnixMilli(n.Timestamp).Format("15:04:05")
	_, _ = c.Fprintf(os.Stdout, "%s %-7s %s\n", ts, strings.ToUpper(string(n.Type)), n.Message)
}

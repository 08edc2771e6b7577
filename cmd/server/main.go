package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/lysyi3m/gamesite-bff/internal/api"
	"github.com/lysyi3m/gamesite-bff/internal/cache"
	"github.com/lysyi3m/gamesite-bff/internal/catalog"
	"github.com/lysyi3m/gamesite-bff/internal/cfg"
	"github.com/lysyi3m/gamesite-bff/internal/cms"
	"github.com/lysyi3m/gamesite-bff/internal/database"
	"github.com/lysyi3m/gamesite-bff/internal/feed"
	"github.com/lysyi3m/gamesite-bff/internal/reconcile"
	"github.com/lysyi3m/gamesite-bff/internal/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(appCfg.LogLevel)})))

	if err := run(appCfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting GameSite BFF", "version", appCfg.Version)

	ctx := context.Background()

	upstreamHTTP := &http.Client{Timeout: appCfg.UpstreamTimeout}

	catalogClient := catalog.NewClient(catalogHTTPClient(ctx, appCfg, upstreamHTTP), catalog.Options{
		BaseURL:     appCfg.IGDBBaseUrl,
		ClientID:    appCfg.IGDBClientID,
		AccessToken: appCfg.IGDBAccessToken,
		UserAgent:   appCfg.UserAgent,
		Timeout:     appCfg.UpstreamTimeout,
	})

	gateway := cms.NewGateway(upstreamHTTP, cms.Options{
		Endpoint:  appCfg.CMSGraphQLUrl,
		AuthToken: appCfg.CMSAuthToken,
		UserAgent: appCfg.UserAgent,
		Timeout:   appCfg.UpstreamTimeout,
	})
	posts := cms.NewPosts(gateway)

	db, err := database.Open(ctx, appCfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	ledger := database.NewLedger(db)

	health := map[string]api.HealthChecker{"database": db}
	reconcileOpts := reconcile.Options{
		Category: appCfg.CMSGamesCategory,
		Recorder: ledger,
	}
	handlerOpts := api.Options{
		Catalog: catalogClient,
		Posts:   posts,
		Ledger:  ledger,
		BaseURL: appCfg.BaseUrl,
		SiteURL: appCfg.SiteUrl,
		Version: appCfg.Version,
	}

	if appCfg.RedisAddr != "" {
		redisCache, err := cache.NewCache(ctx, cache.Options{
			Addr:     appCfg.RedisAddr,
			Password: appCfg.RedisPassword,
			DB:       appCfg.RedisDB,
		})
		if err != nil {
			return err
		}
		defer redisCache.Close()

		reconcileOpts.Locker = cache.NewLocker(redisCache, appCfg.LockTTL, appCfg.LockWait)
		handlerOpts.Cache = redisCache
		handlerOpts.CacheTTL = appCfg.ResponseCacheTTL
		health["redis"] = redisCache
	} else {
		slog.Warn("REDIS_ADDR not set: slug reconciliation is serialised per process only")
	}

	reconciler := reconcile.NewReconciler(posts, reconcileOpts)

	channels := feed.NewChannelCache(appCfg.ChannelsDir)
	if err := channels.Run(); err != nil {
		return fmt.Errorf("failed to load channels: %w", err)
	}
	slog.Info("Channels loaded", "count", channels.GetConfigCount(), "dir", appCfg.ChannelsDir)

	scheduler := tasks.NewScheduler(ledger, posts, tasks.Options{
		Interval:    appCfg.SweepInterval,
		WorkerCount: appCfg.WorkerCount,
	})
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Duplicate sweep scheduler started", "workers", appCfg.WorkerCount, "interval", appCfg.SweepInterval.String())

	handlerOpts.Slugs = reconciler
	handlerOpts.Channels = channels
	handlerOpts.Sweeper = scheduler
	handlerOpts.Health = health

	server := api.NewServer(api.NewHandler(handlerOpts), appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return runErr
}

// catalogHTTPClient authenticates IGDB calls with a Twitch app token from the
// client credentials flow. A static token is sent by the catalog client itself.
func catalogHTTPClient(ctx context.Context, appCfg *cfg.Cfg, base *http.Client) catalog.HTTPClient {
	if appCfg.IGDBAccessToken != "" {
		return base
	}

	creds := clientcredentials.Config{
		ClientID:     appCfg.IGDBClientID,
		ClientSecret: appCfg.IGDBClientSecret,
		TokenURL:     appCfg.IGDBTokenUrl,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return creds.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

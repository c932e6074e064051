package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/perchkeep/perch/internal/auth"
	"github.com/perchkeep/perch/internal/config"
	"github.com/perchkeep/perch/internal/httpserver"
	"github.com/perchkeep/perch/internal/httpserver/deps"
	"github.com/perchkeep/perch/internal/logger"
	"github.com/perchkeep/perch/internal/normalize"
	"github.com/perchkeep/perch/internal/redis"
	"github.com/perchkeep/perch/internal/scheduler"
	"github.com/perchkeep/perch/internal/session"
	"github.com/perchkeep/perch/internal/store/sqlite"
	syncer "github.com/perchkeep/perch/internal/sync"
	"github.com/perchkeep/perch/internal/upstream"
	"github.com/perchkeep/perch/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	store       *sqlite.Store
	refresher   *scheduler.CacheRefresher
	pruner      *scheduler.LogPruner
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Sessions live in Redis - fail fast if unavailable
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	sessions := session.NewStore(redisClient, cfg.SessionTTL)

	// Bookmark cache + sync log persistence
	store, err := sqlite.New(cfg.DBPath, time.Now)
	if err != nil {
		loggerClient.Errorf("Failed to open database at %s: %v", cfg.DBPath, err)
		os.Exit(1)
	}
	loggerClient.Info("database initialized",
		logger.String("path", cfg.DBPath))

	// Category taxonomy: built-in keywords, optionally overridden from file
	taxonomy := normalize.DefaultTaxonomy()
	if cfg.TaxonomyFile != "" {
		taxonomy, err = normalize.LoadTaxonomy(cfg.TaxonomyFile)
		if err != nil {
			loggerClient.Errorf("Failed to load taxonomy from %s: %v", cfg.TaxonomyFile, err)
			os.Exit(1)
		}
		loggerClient.Info("category taxonomy loaded",
			logger.String("file", cfg.TaxonomyFile))
	}
	normalizer := normalize.New(taxonomy, time.Now)

	orchestrator := syncer.New(store, normalizer, loggerClient, time.Now)

	oauthCfg := auth.OAuthConfig(auth.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		RedirectURL:  cfg.OAuthRedirectURL,
	})

	newUpstream := func(accessToken, refreshToken string) syncer.UpstreamClient {
		return upstream.New(upstream.Config{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			BaseURL:      cfg.UpstreamBaseURL,
			OAuth:        oauthCfg,
		})
	}

	refresher := scheduler.NewCacheRefresher(
		sessions,
		store,
		orchestrator,
		newUpstream,
		loggerClient,
		cfg.RefreshInterval,
		time.Now,
	)

	pruner := scheduler.NewLogPruner(
		store,
		loggerClient,
		cfg.LogPruneInterval,
		cfg.LogRetention,
		time.Now,
	)

	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		Store:          store,
		Sessions:       sessions,
		Orchestrator:   orchestrator,
		NewUpstream:    newUpstream,
		OAuth:          oauthCfg,
		RedisClient:    redisClient,
		SessionTTL:     cfg.SessionTTL,
		CookieSecure:   cfg.CookieSecure,
		DashboardURL:   cfg.DashboardURL,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustProxy:     cfg.TrustProxy,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		store:       store,
		refresher:   refresher,
		pruner:      pruner,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Perch v%s on %s", version.Version, a.cfg.ListenAddr)
	a.logger.Infof("Perch %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.refresher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cache refresher: %w", err)
	}
	a.logger.Info("cache refresher started",
		logger.Duration("interval", a.cfg.RefreshInterval))

	if err := a.pruner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start log pruner: %w", err)
	}
	a.logger.Info("log pruner started",
		logger.Duration("interval", a.cfg.LogPruneInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.refresher.Stop()
	a.pruner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warnf("failed to close database: %v", err)
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ Perch stopped cleanly")
	return nil
}

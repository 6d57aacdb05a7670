package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pbataille/shelf/internal/config"
	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/httpserver"
	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/httpserver/mw"
	"github.com/pbataille/shelf/internal/identity"
	"github.com/pbataille/shelf/internal/logger"
	"github.com/pbataille/shelf/internal/reconcile"
	"github.com/pbataille/shelf/internal/redis"
	"github.com/pbataille/shelf/internal/session"
	"github.com/pbataille/shelf/internal/sources/seed"
	redisstore "github.com/pbataille/shelf/internal/store/redis"
	remotestore "github.com/pbataille/shelf/internal/store/remote"
	"github.com/pbataille/shelf/internal/version"
)

type App struct {
	cfg          *config.Config
	logger       logger.Logger
	server       *httpserver.Server
	redisClient  *goredis.Client
	remoteClient *goredis.Client
	sessions     *session.Manager
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize local Redis early - fail fast if unavailable
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
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	store := redisstore.NewStore(redisClient, cfg.SessionTTL)

	// The remote document store is optional. An unreachable endpoint
	// degrades to sync-unavailable instead of blocking startup.
	var remoteClient *goredis.Client
	var remoteStore reconcile.RemoteStore
	if cfg.SyncConfigured() {
		loggerClient.Infof("Connecting to remote document store at %s", cfg.RemoteRedisAddr)
		remoteClient, err = redis.New(redis.ConnectOptions{
			Addr:           cfg.RemoteRedisAddr,
			User:           cfg.RemoteRedisUser,
			Password:       cfg.RemoteRedisPassword,
			DB:             cfg.RemoteRedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			loggerClient.Warnf("remote document store unreachable, cloud sync disabled: %v", err)
			remoteClient = nil
		} else {
			remoteStore = remotestore.NewStore(remoteClient, loggerClient)
			loggerClient.Info("Remote document store initialized successfully")
		}
	}

	identitySvc := identity.New(store, loggerClient)
	sessions := session.NewManager(store, remoteStore, seedFn(cfg, loggerClient), loggerClient)

	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		Identity:       identitySvc,
		Sessions:       sessions,
		SyncConfigured: remoteStore != nil,
		Ready:          store.Ping,
		AuthRateLimit: mw.RateLimitConfig{
			Burst:        cfg.AuthRateBurst,
			RefillPerMin: cfg.AuthRatePerMinute,
			TrustProxy:   cfg.TrustProxy,
		},
		TrustProxy: cfg.TrustProxy,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:          cfg,
		logger:       loggerClient,
		server:       server,
		redisClient:  redisClient,
		remoteClient: remoteClient,
		sessions:     sessions,
	}
}

// seedFn builds the starter tree for users logging in for the first
// time. A configured seed file is loaded once at startup; a broken or
// missing file falls back to the built-in defaults.
func seedFn(cfg *config.Config, log logger.Logger) func() domain.Tree {
	if cfg.SeedFile == "" {
		return domain.DefaultTree
	}

	fileCfg, err := seed.NewLoader(cfg.SeedFile).Load()
	if err != nil {
		log.Warn("seed file unreadable, using built-in starter tree",
			logger.String("file", cfg.SeedFile),
			logger.Error(err))
		return domain.DefaultTree
	}

	tree, err := seed.NewMapper().MapTree(fileCfg)
	if err != nil {
		log.Warn("seed file invalid, using built-in starter tree",
			logger.String("file", cfg.SeedFile),
			logger.Error(err))
		return domain.DefaultTree
	}

	log.Info("seed file loaded",
		logger.String("file", cfg.SeedFile),
		logger.Int("categories", len(tree)))
	return func() domain.Tree { return tree.Clone() }
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Shelf v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Shelf %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	// Detach every live session so outstanding pushes settle before the
	// clients close.
	a.sessions.Shutdown()

	if a.remoteClient != nil {
		if err := a.remoteClient.Close(); err != nil {
			a.logger.Warnf("failed to close remote redis: %v", err)
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ Shelf stopped cleanly")
	return nil
}

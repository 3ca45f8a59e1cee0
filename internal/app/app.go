package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/dlbridge/internal/config"
	"github.com/MrSnakeDoc/dlbridge/internal/connection"
	"github.com/MrSnakeDoc/dlbridge/internal/events"
	"github.com/MrSnakeDoc/dlbridge/internal/history"
	"github.com/MrSnakeDoc/dlbridge/internal/httpserver"
	"github.com/MrSnakeDoc/dlbridge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dlbridge/internal/logger"
	"github.com/MrSnakeDoc/dlbridge/internal/redis"
	"github.com/MrSnakeDoc/dlbridge/internal/remote"
	"github.com/MrSnakeDoc/dlbridge/internal/scheduler"
	"github.com/MrSnakeDoc/dlbridge/internal/settings"
	redisstore "github.com/MrSnakeDoc/dlbridge/internal/store/redis"
	"github.com/MrSnakeDoc/dlbridge/internal/tracker"
	"github.com/MrSnakeDoc/dlbridge/internal/version"
)

// reconfigureTimeout bounds the status check that follows an endpoint change.
const reconfigureTimeout = 2 * time.Second

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	store       *redisstore.Store
	archive     *history.Archive
	conn        *connection.Manager
	tracker     *tracker.Tracker
	monitor     *scheduler.HealthMonitor
	pruner      *scheduler.HistoryPruner
}

// New wires every component from cfg. Redis is optional and a failed
// connection only disables the job mirror; a bad history URL is fatal.
func New(cfg *config.Config) (*App, error) {
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	ctx := context.Background()

	a := &App{cfg: cfg, logger: loggerClient}

	if cfg.RedisEnabled() {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient.Named("redis"))
		if err != nil {
			loggerClient.Warn("redis unavailable, continuing without job mirror", logger.Error(err))
		} else {
			loggerClient.Info("Redis initialized successfully")
			a.redisClient = client
			a.store = redisstore.NewStore(client)
		}
	} else {
		loggerClient.Info("redis not configured, job mirror disabled")
	}

	var store settings.Store
	switch {
	case a.store != nil:
		store = a.store.Settings()
	case cfg.SettingsFile != "":
		store = settings.NewFileStore(cfg.SettingsFile)
	default:
		store = &settings.MemoryStore{}
	}

	// The notifier reads the live setting, so it is bound after the service exists.
	var settingsSvc *settings.Service
	hub := events.NewHub(0, loggerClient.Named("events"))
	notifier := events.NewNotifier(func() bool { return settingsSvc.NotificationsEnabled() }, loggerClient.Named("notify"))
	sink := events.Multi{hub, notifier}

	settingsSvc = settings.NewService(store, settings.Settings{
		ServiceHost:          cfg.ServiceHost,
		ServicePort:          cfg.ServicePort,
		DownloadQuality:      cfg.DownloadQuality,
		NotificationsEnabled: cfg.Notifications,
	}, sink, loggerClient.Named("settings"))
	if err := settingsSvc.Init(ctx); err != nil {
		a.closeStores()
		return nil, fmt.Errorf("load settings: %w", err)
	}

	client := remote.NewClient(remote.Options{
		Timeout:   cfg.RequestTimeout,
		Origin:    cfg.ProbeOrigin,
		UserAgent: "dlbridge/" + version.Version,
	})

	current := settingsSvc.Get()
	connOpts := connection.DefaultOptions()
	connOpts.FallbackPorts = cfg.FallbackPorts
	a.conn = connection.NewManager(
		connection.Endpoint{Host: current.ServiceHost, Port: current.ServicePort},
		client,
		settingsSvc,
		connOpts,
		loggerClient.Named("connection"),
	)
	a.conn.OnStateChange(func(s connection.State) {
		sink.Publish(events.Connection(s.Status.String()))
	})
	settingsSvc.OnEndpointChange(func(host string, port int) {
		rctx, cancel := context.WithTimeout(context.Background(), reconfigureTimeout)
		defer cancel()
		a.conn.Reconfigure(rctx, host, port)
	})

	if cfg.HistoryEnabled() {
		archive, err := history.Open(ctx, cfg.HistoryBucket)
		if err != nil {
			a.closeStores()
			return nil, fmt.Errorf("open history bucket: %w", err)
		}
		a.archive = archive
		a.pruner = scheduler.NewHistoryPruner(archive, loggerClient.Named("history"), cfg.HistoryGCInterval, cfg.HistoryMaxAge)
		loggerClient.Info("history archive enabled", logger.String("bucket", cfg.HistoryBucket))
	}

	trackerDeps := tracker.Deps{
		Conn:           a.conn,
		Client:         client,
		Sink:           sink,
		DefaultQuality: settingsSvc.DownloadQuality,
		Logger:         loggerClient.Named("tracker"),
	}
	if a.store != nil {
		trackerDeps.Recorder = a.store
	}
	if a.archive != nil {
		trackerDeps.Archiver = a.archive
	}
	trackerOpts := tracker.DefaultOptions()
	trackerOpts.CancelSupported = cfg.ServiceCancel
	a.tracker = tracker.New(trackerDeps, trackerOpts)

	a.monitor = scheduler.NewHealthMonitor(a.conn, loggerClient.Named("health"), cfg.HealthInterval)

	// Dependencies passed to routes. Optional stores stay nil interfaces when disabled.
	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustProxy:     cfg.TrustProxy,
		SubmitRate:     cfg.SubmitRate,
		Connection:     a.conn,
		Tracker:        a.tracker,
		Settings:       settingsSvc,
		Events:         hub,
	}
	if a.store != nil {
		d.Redis = a.store
	}
	if a.archive != nil {
		d.History = a.archive
	}

	a.server = httpserver.New(cfg, loggerClient, d)
	return a, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting dlbridge v%s on %s", version.Version, a.cfg.ListenAddr)
	a.logger.Infof("dlbridge %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Resume jobs that were still queued when the last run ended.
	if a.store != nil {
		syncer := scheduler.NewJobSyncer(a.store, a.tracker, a.logger)
		if err := syncer.Sync(ctx); err != nil {
			a.logger.Warn("failed to restore jobs from redis", logger.Error(err))
		}
	}

	a.conn.Start(ctx)

	if err := a.monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health monitor: %w", err)
	}
	a.logger.Info("health monitor started",
		logger.Duration("interval", a.cfg.HealthInterval))

	if a.pruner != nil {
		if err := a.pruner.Start(ctx); err != nil {
			return fmt.Errorf("failed to start history pruner: %w", err)
		}
		a.logger.Info("history pruner started",
			logger.Duration("interval", a.cfg.HistoryGCInterval))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	a.monitor.Stop()
	if a.pruner != nil {
		a.pruner.Stop()
	}

	// Jobs stay in the mirror so the next run can resume them.
	a.tracker.Stop()
	a.conn.Stop()
	a.closeStores()

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ dlbridge stopped cleanly")
	_ = a.logger.Sync()
	return nil
}

func (a *App) closeStores() {
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.logger.Warnf("failed to close history bucket: %v", err)
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}
}

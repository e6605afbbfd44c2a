package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syncup-api/core/cache"
	"syncup-api/core/config"
	"syncup-api/core/database"
	"syncup-api/core/database/migrations"
	"syncup-api/core/logger"
	"syncup-api/core/middleware"
	"syncup-api/core/queue"
	"syncup-api/core/storage"
	"syncup-api/modules/auth"
	"syncup-api/modules/event"
	"time"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// Options tune what Run starts next to the HTTP server.
type Options struct {
	WithWorker bool
	Migrate    bool
}

// deps are the shared connections used by both the API and the worker.
type deps struct {
	db       database.Database
	redis    *cache.RedisCache
	client   *asynq.Client
	uploader *storage.S3Storage
}

func connect(ctx context.Context, cfg *config.Config, migrate bool) (*deps, error) {
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return nil, err
	}

	if migrate {
		if err := migrations.MigrateUp(db.DB()); err != nil {
			db.Close()
			return nil, err
		}
	} else if err := migrations.CheckMigrationStatus(db.DB()); err != nil {
		logger.Warn("Server:Connect:MigrationStatus", "error", err)
	}

	redis := cache.NewRedisCache(cfg.Redis)
	if err := redis.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	uploader := storage.NewS3Storage(cfg.S3)
	if uploader == nil {
		logger.Info("Server:Connect:ExportsDisabled", "reason", "s3.bucket not set")
	}

	return &deps{
		db:       db,
		redis:    redis,
		client:   queue.NewClient(cfg.Redis),
		uploader: uploader,
	}, nil
}

func (d *deps) close() {
	if err := d.client.Close(); err != nil {
		logger.Warn("Server:Close:AsynqClient", "error", err)
	}
	if err := d.redis.Close(); err != nil {
		logger.Warn("Server:Close:Redis", "error", err)
	}
	if err := d.db.Close(); err != nil {
		logger.Warn("Server:Close:Database", "error", err)
	}
}

// Run serves the HTTP API until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	d, err := connect(ctx, cfg, opts.Migrate)
	if err != nil {
		return err
	}
	defer d.close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.CORS(cfg.Frontend.URL))

	e.GET("/health", func(c echo.Context) error {
		status := http.StatusOK
		checks := map[string]string{"database": "ok", "redis": "ok"}
		if err := d.db.DB().PingContext(c.Request().Context()); err != nil {
			status, checks["database"] = http.StatusServiceUnavailable, err.Error()
		}
		if err := d.redis.Ping(c.Request().Context()); err != nil {
			status, checks["redis"] = http.StatusServiceUnavailable, err.Error()
		}
		return c.JSON(status, checks)
	})

	mw := auth.Init(e, d.db, d.redis, cfg)
	event.Init(e, d.db, d.redis, mw, d.client, d.uploader, cfg)

	workerErr := make(chan error, 1)
	if opts.WithWorker {
		go func() { workerErr <- runWorker(ctx, cfg, d) }()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server:Run:Listening", "addr", addr, "env", cfg.App.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case err := <-workerErr:
		if err != nil {
			return err
		}
		<-ctx.Done()
	case <-ctx.Done():
	}

	logger.Info("Server:Run:ShuttingDown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// RunWorker processes queued tasks until ctx is cancelled.
func RunWorker(ctx context.Context, cfg *config.Config) error {
	d, err := connect(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer d.close()
	return runWorker(ctx, cfg, d)
}

// Migrate applies pending schema migrations.
func Migrate(cfg *config.Config) error {
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.MigrateUp(db.DB()); err != nil {
		return err
	}
	return migrations.CheckMigrationStatus(db.DB())
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return cfg.Server.ShutdownTimeout
}

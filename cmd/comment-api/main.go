package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-adp-comments/api/swagger"
	"github.com/noah-isme/sma-adp-comments/internal/handler"
	"github.com/noah-isme/sma-adp-comments/internal/middleware"
	"github.com/noah-isme/sma-adp-comments/internal/models"
	"github.com/noah-isme/sma-adp-comments/internal/repository"
	"github.com/noah-isme/sma-adp-comments/internal/service"
	"github.com/noah-isme/sma-adp-comments/pkg/cache"
	"github.com/noah-isme/sma-adp-comments/pkg/config"
	"github.com/noah-isme/sma-adp-comments/pkg/consistency"
	"github.com/noah-isme/sma-adp-comments/pkg/database"
	"github.com/noah-isme/sma-adp-comments/pkg/jobs"
	"github.com/noah-isme/sma-adp-comments/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-adp-comments/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-adp-comments/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	primary, err := database.NewPostgres(ctx, database.RolePrimary, cfg.Database)
	if err != nil {
		return err
	}
	defer primary.Close()

	replica := primary
	if cfg.Replica != cfg.Database {
		if replica, err = database.NewPostgres(ctx, database.RoleReplica, cfg.Replica); err != nil {
			return err
		}
		defer replica.Close()
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	metrics := service.NewMetricsService()

	commentRepo := repository.NewCommentRepository(primary, replica).WithObserver(metrics)
	searchRepo := repository.NewSearchRepository(redisClient, metrics)
	poller := consistency.NewPoller(cfg.Consistency.MaxWait, cfg.Consistency.PollInterval)
	store := repository.NewEntityStore[*models.CommentAttributes, models.Comment](
		commentRepo, searchRepo, poller, service.NewStoreEvents(logr, metrics))

	directoryRepo := repository.NewDirectoryRepository(replica)
	cacheRepo := repository.NewCacheRepository(redisClient, "directory")
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Directory.CacheTTL, logr, cfg.Directory.CacheEnabled)
	directorySvc := service.NewDirectoryService(directoryRepo, cacheSvc, logr)

	commentSvc := service.NewCommentService(store, commentRepo, directorySvc, nil, cfg.Search.IndexName, validator.New(), logr)
	queue := jobs.NewQueue("search-index", commentSvc.HandleIndexJob, jobs.QueueConfig{
		Workers:    cfg.Search.Workers,
		MaxRetries: cfg.Search.Retries,
		RetryDelay: cfg.Search.RetryDelay,
		Logger:     logr,
	})
	commentSvc.SetQueue(queue)
	exportSvc := service.NewExportService(commentRepo, directorySvc, cfg.Export.MaxRows, logr)
	queue.Start(context.Background())

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))

	metricsHandler := handler.NewMetricsHandler(metrics, readinessChecks(primary, replica, redisClient))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	handler.NewCommentHandler(commentSvc).Register(api)
	handler.NewExportHandler(exportSvc).Register(api)
	handler.NewDirectoryHandler(directorySvc).Register(api)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http server shutdown", zap.Error(err))
	}
	// Pending index jobs get the rest of the shutdown window.
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logr.Warn("search index queue shutdown", zap.Error(err))
	}
	logr.Info("server stopped")
	return nil
}

func readinessChecks(primary, replica *sqlx.DB, redisClient redis.UniversalClient) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": primary.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}
	if replica != primary {
		checks["postgres_replica"] = replica.PingContext
	}
	return checks
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/zhenzhu143321/hxci-campus-portal-system/api/swagger"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/handler"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/middleware"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/repository"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/service"
	"github.com/zhenzhu143321/hxci-campus-portal-system/pkg/cache"
	"github.com/zhenzhu143321/hxci-campus-portal-system/pkg/config"
	"github.com/zhenzhu143321/hxci-campus-portal-system/pkg/database"
	"github.com/zhenzhu143321/hxci-campus-portal-system/pkg/jobs"
	"github.com/zhenzhu143321/hxci-campus-portal-system/pkg/logger"
	corsmiddleware "github.com/zhenzhu143321/hxci-campus-portal-system/pkg/middleware/cors"
	reqidmiddleware "github.com/zhenzhu143321/hxci-campus-portal-system/pkg/middleware/requestid"
	"github.com/zhenzhu143321/hxci-campus-portal-system/pkg/storage"
)

// @title HXCI Campus Portal Gateway
// @version 1.0.0
// @description Notification feed gateway for the campus portal
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	stateStore, stateWatcher := buildStateStore(cfg, logr)
	upstream := repository.NewUpstreamRepository(cfg.Upstream, nil, logr)
	authService := service.NewAuthService(service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	}, logr)

	preloadQueue := jobs.NewQueue("detail-preload", func(ctx context.Context, job jobs.Job) error {
		fn, ok := job.Payload.(func(context.Context) error)
		if !ok {
			return fmt.Errorf("unexpected payload for job %s", job.ID)
		}
		return fn(ctx)
	}, jobs.QueueConfig{Workers: 2, Logger: logr})
	preloadQueue.Start(ctx)
	defer preloadQueue.Stop()

	registry := service.NewFeedRegistry(func(userID string) *service.FeedService {
		readState := service.NewReadStateService(service.ReadStateParams{
			Store:            stateStore,
			KeyPrefix:        cfg.ReadState.KeyPrefix,
			DebounceInterval: cfg.ReadState.DebounceInterval,
			Logger:           logr,
			Metrics:          metrics,
		})
		notifications := service.NewNotificationService(upstream, service.CacheOptions{
			Enabled: cfg.Cache.Enabled,
			TTL:     cfg.Cache.TTL,
			MaxSize: cfg.Cache.MaxSize,
		}, nil, metrics, logr)

		feed := service.NewFeedService(service.FeedParams{
			Notifications: notifications,
			ReadState:     readState,
			Preload: service.PreloadOptions{
				Enabled:  cfg.Preload.Enabled,
				MaxItems: cfg.Preload.MaxItems,
				MaxLevel: cfg.Preload.MaxLevel,
			},
			Dispatch: func(records []models.NotificationRecord) {
				job := jobs.Job{
					ID:   uuid.NewString(),
					Type: "detail_preload",
					Payload: func(ctx context.Context) error {
						notifications.Preload(ctx, records, cfg.Preload.MaxItems, cfg.Preload.MaxLevel)
						return nil
					},
				}
				if err := preloadQueue.Enqueue(job); err != nil {
					logr.Sugar().Debugw("preload enqueue skipped", "error", err)
				}
			},
			Metrics: metrics,
			Logger:  logr,
		})
		notifications.SetNotifier(feed)

		if stateWatcher != nil {
			if err := feed.WatchExternal(ctx, stateWatcher); err != nil {
				logr.Sugar().Warnw("state watch unavailable", "user", userID, "error", err)
			}
		}
		return feed
	})
	defer registry.Close()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	feedHandler := handler.NewFeedHandler(registry, cfg.Upstream.DefaultPageSize)
	cacheHandler := handler.NewCacheHandler(registry)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.OptionalJWT(authService))
	{
		api.GET("/notifications", feedHandler.List)
		api.GET("/notifications/views", feedHandler.Views)
		api.GET("/notifications/stats", feedHandler.Stats)
		api.GET("/notifications/read-state", feedHandler.ReadState)
		api.GET("/notifications/:id", feedHandler.Detail)
		api.POST("/notifications/:id/read", feedHandler.MarkRead)
		api.DELETE("/notifications/:id/read", feedHandler.MarkUnread)
		api.POST("/notifications/:id/hide", feedHandler.Hide)
		api.POST("/notifications/bulk-read", feedHandler.BulkRead)
		api.POST("/notifications/refresh", feedHandler.Refresh)
		api.DELETE("/notifications/archive", feedHandler.ClearArchive)

		api.GET("/cache/stats", cacheHandler.Stats)
		api.PATCH("/cache/config", cacheHandler.Configure)
		api.DELETE("/cache", cacheHandler.Invalidate)
	}

	if cfg.Export.Enabled {
		exportStorage, err := storage.NewLocalStorage(cfg.Export.Dir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Export.SignSecret, cfg.Export.ResultTTL)
		exportService := service.NewExportService(exportStorage, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Export.ResultTTL,
		}, logr)
		archiveHandler := handler.NewArchiveHandler(registry, exportService)

		api.POST("/archive/export", middleware.JWT(authService), archiveHandler.Export)
		api.GET("/archive/export/:token", archiveHandler.Download)

		go cleanupLoop(ctx, exportService, cfg.Export.ResultTTL, logr)
	}

	if cfg.Env != config.EnvProduction {
		authHandler := handler.NewAuthHandler(authService)
		api.POST("/auth/dev-login", authHandler.DevLogin)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("shutdown incomplete", "error", err)
	}
}

// buildStateStore selects the read-state backend. Redis also provides
// cross-instance change events; memory serves development and tests.
func buildStateStore(cfg *config.Config, logr *zap.Logger) (repository.StateStore, repository.StateWatcher) {
	switch cfg.ReadState.Backend {
	case "redis":
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, falling back to memory state store", "error", err)
			break
		}
		store := repository.NewRedisStateStore(client, cfg.ReadState.KeyPrefix, logr)
		return store, store
	case "postgres":
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Sugar().Warnw("postgres unavailable, falling back to memory state store", "error", err)
			break
		}
		return repository.NewPostgresStateStore(db), nil
	}
	store := repository.NewMemoryStateStore()
	return store, store
}

func cleanupLoop(ctx context.Context, exports *service.ExportService, ttl time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(ttl)
			if err != nil {
				logr.Sugar().Warnw("export cleanup failed", "error", err)
				continue
			}
			if len(removed) > 0 {
				logr.Sugar().Infow("export cleanup", "removed", len(removed))
			}
		}
	}
}

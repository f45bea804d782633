package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/tryout-api/api/swagger"
	"github.com/noah-isme/tryout-api/internal/handler"
	"github.com/noah-isme/tryout-api/internal/middleware"
	"github.com/noah-isme/tryout-api/internal/repository"
	"github.com/noah-isme/tryout-api/internal/service"
	"github.com/noah-isme/tryout-api/pkg/cache"
	"github.com/noah-isme/tryout-api/pkg/config"
	"github.com/noah-isme/tryout-api/pkg/database"
	"github.com/noah-isme/tryout-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tryout-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tryout-api/pkg/middleware/requestid"
)

// @title Tryout API
// @version 1.0.0
// @description Timed coding-challenge attempt reservations and submissions
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}

	storeOpts := repository.StoreOptions{
		QueryTimeout: cfg.Store.QueryTimeout,
		MaxRetries:   cfg.Store.MaxRetries,
		RetryBackoff: cfg.Store.RetryBackoff,
	}

	challengeRepo := repository.NewChallengeRepository(db, storeOpts)
	attemptRepo := repository.NewAttemptRepository(db, storeOpts)
	assignmentRepo := repository.NewAssignmentRepository(db, storeOpts)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	catalogSvc := service.NewCatalogService(challengeRepo, cacheRepo, cfg.Catalog.CacheTTL, nil, logr)
	reservationSvc := service.NewReservationService(attemptRepo, catalogSvc, metricsSvc, nil, logr, nil)
	submissionSvc := service.NewSubmissionService(attemptRepo, metricsSvc, nil, logr, nil)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, catalogSvc, nil, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(attemptRepo, catalogSvc, logr, nil)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sweeper.Enabled {
		sweeper := service.NewSweeperService(attemptRepo, submissionSvc, cfg.Sweeper, metricsSvc, logr, nil)
		sweeper.Start(rootCtx)
		defer sweeper.Stop()
	}

	challengeHandler := handler.NewChallengeHandler(catalogSvc, assignmentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	var attemptHandler *handler.AttemptHandler
	if exportSvc != nil {
		attemptHandler = handler.NewAttemptHandler(reservationSvc, submissionSvc, exportSvc)
	} else {
		attemptHandler = handler.NewAttemptHandler(reservationSvc, submissionSvc, nil)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/challenges", challengeHandler.Create)
		api.GET("/challenges", challengeHandler.List)
		api.GET("/challenges/:id", challengeHandler.Get)
		api.POST("/challenges/:id/markers", challengeHandler.AssignMarker)
		api.GET("/challenges/:id/markers", challengeHandler.ListMarkers)
		api.GET("/challenges/:id/submissions", challengeHandler.ListSubmissionLinks)
		api.GET("/challenges/:id/attempts/export", attemptHandler.Export)

		api.POST("/attempts", attemptHandler.Open)
		api.POST("/reservations/:id/cancel", attemptHandler.Cancel)
		api.POST("/submissions/:id/submit", attemptHandler.Submit)
		api.GET("/submissions/:id/status", attemptHandler.Status)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-rootCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Store.QueryTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

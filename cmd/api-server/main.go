package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Gopika0263/donation-api/api/swagger"
	"github.com/Gopika0263/donation-api/internal/handler"
	"github.com/Gopika0263/donation-api/internal/middleware"
	"github.com/Gopika0263/donation-api/internal/models"
	"github.com/Gopika0263/donation-api/internal/repository"
	"github.com/Gopika0263/donation-api/internal/service"
	"github.com/Gopika0263/donation-api/pkg/cache"
	"github.com/Gopika0263/donation-api/pkg/config"
	"github.com/Gopika0263/donation-api/pkg/database"
	"github.com/Gopika0263/donation-api/pkg/jobs"
	"github.com/Gopika0263/donation-api/pkg/logger"
	corsmiddleware "github.com/Gopika0263/donation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/Gopika0263/donation-api/pkg/middleware/requestid"
	"github.com/Gopika0263/donation-api/pkg/storage"
)

// @title Food Donation API
// @version 1.0.0
// @description Coordination backend for food donors, receivers, and admins
// @BasePath /api
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	uploads, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	donationRepo := repository.NewDonationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	donationSvc := service.NewDonationService(donationRepo, auditRepo, uploads, validate, metricsSvc, logr)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, true)
	}

	var statsSvc *service.StatsService
	if cfg.Stats.Enabled {
		statsSvc = service.NewStatsService(donationRepo, cacheSvc, metricsSvc, logr, service.StatsServiceConfig{
			CacheTTL:    cfg.Stats.CacheTTL,
			DefaultDays: cfg.Stats.DefaultDays,
			MaxDays:     cfg.Stats.MaxDays,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reportSvc *service.ReportService
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		exports, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportRepo := repository.NewReportRepository(db)
		worker := service.NewReportWorker(reportRepo, donationRepo, exports, metricsSvc, logr)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(ctx)
		defer reportQueue.Stop()

		reportSvc = service.NewReportService(reportRepo, donationRepo, reportQueue, exports, signer, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			DownloadBase:    cfg.APIPrefix + "/admin/reports/download",
		})
		reportSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	donationHandler := handler.NewDonationHandler(donationSvc, cfg.Uploads.MaxFileSizeBytes)
	adminHandler := handler.NewAdminHandler(donationSvc, statsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	r.Static("/uploads", cfg.Uploads.StorageDir)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	donations := api.Group("/donations", middleware.JWT(authSvc))
	donations.POST("", middleware.RequireRoles(models.RoleDonor), donationHandler.Create)
	donations.GET("", donationHandler.ListAvailable)
	donations.GET("/my/donations", middleware.RequireRoles(models.RoleDonor), donationHandler.MyDonations)
	donations.GET("/my/claims", middleware.RequireRoles(models.RoleReceiver), donationHandler.MyClaims)
	donations.PUT("/:id/claim", donationHandler.Claim)
	donations.PUT("/:id/pickup", donationHandler.Pickup)
	donations.PUT("/:id/deliver", donationHandler.Deliver)
	donations.PUT("/:id/complete", donationHandler.Complete)
	donations.POST("/:id/image", middleware.RequireRoles(models.RoleDonor), donationHandler.UploadImage)

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/donations", adminHandler.ListDonations)
	admin.PUT("/donations/:id", adminHandler.SetStatus)
	if statsSvc != nil {
		admin.GET("/stats", adminHandler.Stats)
	}
	if reportSvc != nil {
		reportHandler := handler.NewReportHandler(reportSvc)
		admin.POST("/reports", reportHandler.Create)
		admin.GET("/reports/:id", reportHandler.Get)
		// download is authenticated by the signed token itself
		api.GET("/admin/reports/download/:token", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

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
	"go.uber.org/zap"

	_ "github.com/pepschool/asset-insight-api/api/swagger"
	"github.com/pepschool/asset-insight-api/internal/analysis"
	"github.com/pepschool/asset-insight-api/internal/handler"
	"github.com/pepschool/asset-insight-api/internal/ingest"
	"github.com/pepschool/asset-insight-api/internal/middleware"
	"github.com/pepschool/asset-insight-api/internal/models"
	"github.com/pepschool/asset-insight-api/internal/repository"
	"github.com/pepschool/asset-insight-api/internal/service"
	"github.com/pepschool/asset-insight-api/pkg/cache"
	"github.com/pepschool/asset-insight-api/pkg/config"
	"github.com/pepschool/asset-insight-api/pkg/database"
	"github.com/pepschool/asset-insight-api/pkg/logger"
	corsmiddleware "github.com/pepschool/asset-insight-api/pkg/middleware/cors"
	reqidmiddleware "github.com/pepschool/asset-insight-api/pkg/middleware/requestid"
	"github.com/pepschool/asset-insight-api/pkg/storage"
)

// @title ASSET Insight API
// @version 1.0.0
// @description School-wide assessment analytics over EI ASSET results
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && cfg.Redis.Enabled)

	var store service.DatasetStore
	if cfg.Database.Enabled {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer db.Close()
		store = repository.NewDatasetRepository(db)
	}

	tags, err := analysis.LoadSkillTags(cfg.Ingest.SkillTagFile)
	if err != nil {
		logr.Warn("skill tag file unavailable, inverted skill detection disabled", zap.Error(err))
		tags = nil
	}

	pipeline := analysis.NewPipeline(analysis.Options{
		RiskThreshold:        cfg.Analysis.RiskThreshold,
		WeaknessThreshold:    cfg.Analysis.WeaknessThreshold,
		PersistenceMinGrades: cfg.Analysis.PersistenceMinGrades,
		Anomaly: analysis.AnomalyConfig{
			BlindSpotOverallMin: cfg.Analysis.BlindSpotOverallMin,
			BlindSpotSkillMax:   cfg.Analysis.BlindSpotSkillMax,
			SpecialistHighMin:   cfg.Analysis.SpecialistHighMin,
			SpecialistLowMax:    cfg.Analysis.SpecialistLowMax,
			InvertedGapMin:      cfg.Analysis.InvertedGapMin,
			VarianceHighMin:     cfg.Analysis.VarianceHighMin,
			VarianceLowMax:      cfg.Analysis.VarianceLowMax,
		},
		Workers: cfg.Analysis.Workers,
	}, tags, models.SchoolInfo{
		SchoolName:     cfg.School.Name,
		SchoolCode:     cfg.School.Code,
		AssessmentName: cfg.School.AssessmentName,
		AssessmentDate: cfg.School.AssessmentDate,
	}, logr)

	loader := ingest.NewLoader(cfg.Ingest.ScoresDir, cfg.Ingest.SkillsDir, logr)
	analysisSvc := service.NewAnalysisService(loader, store, pipeline, cacheSvc, metricsSvc, cfg.Cache.TTL, logr)
	if err := analysisSvc.Start(ctx); err != nil {
		logr.Warn("initial analysis failed, serving will retry on demand", zap.Error(err))
	}
	defer analysisSvc.Stop()

	localStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to init export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.JWT.Secret, 24*time.Hour)
	exportSvc := service.NewExportService(analysisSvc, localStorage, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: 24 * time.Hour,
	}, logr, nil, nil)
	exportSvc.StartCleanup(ctx, time.Hour)

	authSvc := service.NewAuthService(validator.New(), logr, service.AuthConfig{
		Secret:            cfg.JWT.Secret,
		Expiration:        cfg.JWT.Expiration,
		ManagementKey:     cfg.Auth.ManagementKey,
		ElementaryKey:     cfg.Auth.ElementaryKey,
		MiddleKey:         cfg.Auth.MiddleKey,
		ElementaryClasses: cfg.Auth.ElementaryClasses,
		MiddleClasses:     cfg.Auth.MiddleClasses,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	documentHandler := handler.NewDocumentHandler(analysisSvc)
	findingsHandler := handler.NewFindingsHandler(analysisSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	adminHandler := handler.NewAdminHandler(analysisSvc, metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if !analysisSvc.HasDocument() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "computing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/exports/download/:token", exportHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	protected.GET("/document", documentHandler.Document)
	protected.GET("/reports/:class/:subject", documentHandler.Report)
	protected.GET("/findings/at-risk", findingsHandler.AtRisk)
	protected.GET("/findings/weaknesses", findingsHandler.Weaknesses)
	protected.GET("/findings/anomalies", findingsHandler.Anomalies)
	protected.POST("/exports", exportHandler.Generate)

	management := protected.Group("")
	management.Use(middleware.RequireRoles(models.RoleManagement))
	management.POST("/refresh", adminHandler.Refresh)
	management.GET("/system/metrics", adminHandler.SystemMetrics)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-exam-scheduler/api/swagger"
	"github.com/noah-isme/sma-exam-scheduler/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-exam-scheduler/internal/middleware"
	"github.com/noah-isme/sma-exam-scheduler/internal/models"
	"github.com/noah-isme/sma-exam-scheduler/internal/repository"
	"github.com/noah-isme/sma-exam-scheduler/internal/scheduling"
	"github.com/noah-isme/sma-exam-scheduler/internal/service"
	"github.com/noah-isme/sma-exam-scheduler/pkg/cache"
	"github.com/noah-isme/sma-exam-scheduler/pkg/config"
	"github.com/noah-isme/sma-exam-scheduler/pkg/database"
	"github.com/noah-isme/sma-exam-scheduler/pkg/export"
	"github.com/noah-isme/sma-exam-scheduler/pkg/jobs"
	"github.com/noah-isme/sma-exam-scheduler/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-exam-scheduler/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-exam-scheduler/pkg/middleware/requestid"
	"github.com/noah-isme/sma-exam-scheduler/pkg/storage"
)

// @title SMA Exam Scheduler API
// @version 1.0.0
// @description Plans exam periods so no student sits two exams on one day.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	probes := map[string]handler.ReadinessProbe{}

	var rosters *repository.RosterRepository
	if cfg.Database.Enabled {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect roster database", zap.Error(err))
		}
		defer closeDB(db, logr)
		rosters = repository.NewRosterRepository(db)
		probes["postgres"] = db.PingContext
	}

	var store service.ResultStore
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer closeRedis(client, logr)
		cacheRepo := repository.NewCacheRepository(client, "exam-schedule:run")
		store = service.NewCachedResultStore(service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, true))
		probes["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	} else {
		memory := service.NewMemoryResultStore()
		memory.StartSweeper(ctx, time.Minute)
		store = memory
	}

	engine := scheduling.NewEngine(scheduling.Options{
		ExtensionStepDays: cfg.Scheduler.ExtensionStepDays,
		MaxExtensionDays:  cfg.Scheduler.MaxExtensionDays,
	})
	var rosterReader interface {
		ListByTerm(context.Context, models.RosterFilter) ([]models.ExamEnrollment, error)
		CountByTerm(context.Context, string) (int, error)
	}
	if rosters != nil {
		rosterReader = rosters
	}
	scheduler := service.NewExamScheduleService(rosterReader, engine, store, metrics, validator.New(), logr, service.ExamScheduleConfig{
		ResultTTL:     cfg.Scheduler.ResultTTL,
		MaxRosterRows: cfg.Scheduler.MaxRosterRows,
	})

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	exporter := service.NewExportService(
		files,
		storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
		logr,
		export.NewCSVExporter(),
		export.NewPDFExporter(),
	)
	exportJobs := service.NewExportJobService(scheduler, exporter, nil, metrics, logr, service.ExportJobConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	queue := jobs.NewQueue("exam-schedule-exports", exportJobs.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		OnGiveUp:   exportJobs.GiveUp,
		Logger:     logr,
	})
	exportJobs.SetQueue(queue)
	queue.Start(ctx)
	defer queue.Stop()
	exportJobs.StartCleanup(ctx)

	var tokens internalmiddleware.TokenValidator
	if cfg.JWT.Enabled {
		tokens = service.NewTokenService(cfg.JWT.Secret)
	}

	r := newRouter(cfg, logr, metrics, routeDeps{
		exams:   handler.NewExamScheduleHandler(scheduler, exporter, exportJobs, cfg.Scheduler.MaxUploadBytes),
		metrics: handler.NewMetricsHandler(metrics, probes),
		tokens:  tokens,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type routeDeps struct {
	exams   *handler.ExamScheduleHandler
	metrics *handler.MetricsHandler
	tokens  internalmiddleware.TokenValidator
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	exams := api.Group("/exam-schedules")
	// Signed tokens authorise downloads on their own so links work from a
	// browser without a bearer header.
	exams.GET("/downloads/:token", deps.exams.Download)

	secured := exams.Group("")
	if deps.tokens != nil {
		secured.Use(internalmiddleware.JWT(deps.tokens))
		secured.Use(internalmiddleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher))
	}
	secured.POST("", deps.exams.Generate)
	secured.POST("/upload", deps.exams.Upload)
	secured.GET("/exports/:jobId", deps.exams.ExportStatus)
	secured.GET("/:id", deps.exams.Extended)
	secured.GET("/:id/forced", deps.exams.Forced)
	secured.GET("/:id/export", deps.exams.Export)
	secured.POST("/:id/exports", deps.exams.CreateExport)

	return r
}

func closeDB(db *sqlx.DB, logr *zap.Logger) {
	if err := db.Close(); err != nil {
		logr.Warn("close roster database", zap.Error(err))
	}
}

func closeRedis(client *redis.Client, logr *zap.Logger) {
	if err := client.Close(); err != nil {
		logr.Warn("close redis", zap.Error(err))
	}
}

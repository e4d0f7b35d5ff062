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

	_ "github.com/noah-isme/timetable-api/api/swagger"
	"github.com/noah-isme/timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/repository"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/cache"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/database"
	"github.com/noah-isme/timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

const (
	shutdownTimeout = 15 * time.Second
	slowRequest     = 5 * time.Second
)

// @title Timetable API
// @version 1.0.0
// @description Genetic timetable generation for divisions, teachers and subjects
// @BasePath /api
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	var inputs service.InputSnapshotReader
	if cfg.Store.Enabled {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer db.Close()
		inputs = repository.NewInputRepository(db, metrics)
		checks["postgres"] = pingPostgres(db)
	}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		cacheRepo = repository.NewCacheRepository(client)
		checks["redis"] = pingRedis(client)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	generator := service.NewScheduleGeneratorService(inputs, cacheSvc, metrics, validator.New(), logr, service.ScheduleGeneratorConfig{
		Options:         schedulerOptions(cfg.Scheduler),
		MaxTeacherLoad:  cfg.Scheduler.MaxTeacherLoad,
		LectureDuration: cfg.Scheduler.LectureDuration,
		LabBlockSlots:   cfg.Scheduler.LabBlockSlots,
		CacheTTL:        cfg.Cache.TTL,
	})

	runs := service.NewRunService(generator, metrics, logr, service.RunServiceConfig{
		TTL:        cfg.Scheduler.RunTTL,
		Workers:    cfg.Scheduler.RunWorkers,
		Retries:    cfg.Scheduler.RunRetries,
		RetryDelay: time.Second,
	})
	runs.Start(ctx)
	defer runs.Stop()

	exportSvc := service.NewExportService(runs, logr)
	inputSvc := service.NewInputService(inputs, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{Secret: cfg.Auth.Secret, Issuer: cfg.Auth.Issuer})

	generatorHandler := handler.NewScheduleGeneratorHandler(generator)
	runHandler := handler.NewRunHandler(runs, exportSvc)
	streamHandler := handler.NewRunStreamHandler(runs, cfg.CORS.AllowedOrigins, logr)
	inputHandler := handler.NewInputHandler(inputSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	cacheHandler := handler.NewCacheHandler(cacheSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, slowRequest))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	if cfg.Auth.Enabled {
		api.Use(internalmiddleware.JWT(authSvc))
	}
	read := internalmiddleware.RequireRoles(cfg.Auth.Enabled, models.RoleViewer, models.RolePlanner, models.RoleAdmin)
	plan := internalmiddleware.RequireRoles(cfg.Auth.Enabled, models.RolePlanner, models.RoleAdmin)
	admin := internalmiddleware.RequireRoles(cfg.Auth.Enabled, models.RoleAdmin)

	api.GET("/generate-slots", read, generatorHandler.PreviewStored)
	api.POST("/generate-slots", read, generatorHandler.Preview)
	api.GET("/generate-ai-timetable", plan, generatorHandler.GenerateStored)
	api.POST("/generate-ai-timetable", plan, generatorHandler.Generate)

	api.POST("/timetable-runs", plan, runHandler.Create)
	api.GET("/timetable-runs/:id", read, runHandler.Get)
	api.DELETE("/timetable-runs/:id", plan, runHandler.Cancel)
	api.GET("/timetable-runs/:id/stream", read, streamHandler.Stream)
	api.GET("/timetable-runs/:id/export", read, runHandler.Export)

	api.GET("/divisions", read, inputHandler.Divisions)
	api.GET("/teachers", read, inputHandler.Teachers)
	api.GET("/subjects", read, inputHandler.Subjects)
	api.GET("/subject-teachers", read, inputHandler.SubjectTeachers)
	api.GET("/timetable-config", read, inputHandler.Config)

	api.GET("/metrics/summary", admin, metricsHandler.Summary)
	api.DELETE("/cache", admin, cacheHandler.Flush)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func schedulerOptions(cfg config.SchedulerConfig) scheduler.Options {
	return scheduler.Options{
		PopulationSize:  cfg.PopulationSize,
		MaxGenerations:  cfg.MaxGenerations,
		EliteCount:      cfg.EliteCount,
		TournamentSize:  cfg.TournamentSize,
		CrossoverRate:   cfg.CrossoverRate,
		MutationRate:    cfg.MutationRate,
		StagnationLimit: cfg.StagnationLimit,
		TimeBudget:      cfg.TimeBudget,
		Workers:         cfg.Workers,
		TargetSoft:      int64(cfg.TargetSoft),
	}
}

func pingPostgres(db *sqlx.DB) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

func pingRedis(client *redis.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/school-calendar-api/api/swagger"
	"github.com/noah-isme/school-calendar-api/internal/handler"
	"github.com/noah-isme/school-calendar-api/internal/middleware"
	"github.com/noah-isme/school-calendar-api/internal/policy"
	"github.com/noah-isme/school-calendar-api/internal/repository"
	"github.com/noah-isme/school-calendar-api/internal/service"
	"github.com/noah-isme/school-calendar-api/pkg/cache"
	"github.com/noah-isme/school-calendar-api/pkg/config"
	"github.com/noah-isme/school-calendar-api/pkg/database"
	"github.com/noah-isme/school-calendar-api/pkg/jobs"
	"github.com/noah-isme/school-calendar-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-calendar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-calendar-api/pkg/middleware/requestid"
)

const shutdownTimeout = 10 * time.Second

// @title School Calendar API
// @version 1.0.0
// @description Role-scoped school event calendar with status workflow and audit history.
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Summary.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("summary cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	metrics := service.NewMetricsService()
	validate := service.NewValidator()

	eventRepo := repository.NewEventRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "calendar:", logr)
	defer cacheRepo.Close() //nolint:errcheck

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	auditSvc := service.NewAuditService(auditRepo, metrics, logr)

	var auditQueue *jobs.Queue
	if cfg.Audit.Async {
		auditQueue = jobs.NewQueue("audit", auditSvc.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Audit.Workers,
			BufferSize: cfg.Audit.BufferSize,
			MaxRetries: cfg.Audit.MaxRetries,
			RetryDelay: cfg.Audit.RetryDelay,
			Logger:     logr,
		})
		auditSvc.UseQueue(auditQueue, cfg.Audit.MaxRetries)
		auditQueue.Start(context.WithoutCancel(ctx))
	}

	summaryCache := service.NewCacheService(cacheRepo, metrics, cfg.Summary.CacheTTL, logr, redisClient != nil)
	workflow := service.NewStatusWorkflow(eventRepo, auditSvc, validate, metrics, logr, cfg.Workflow.StrictTransitions)
	eventSvc := service.NewEventService(eventRepo, workflow, auditSvc, validate, logr, service.EventServiceConfig{
		Cache:      summaryCache,
		SummaryTTL: cfg.Summary.CacheTTL,
		Metrics:    metrics,
	})
	exportSvc := service.NewExportService(eventSvc, cfg.Export.CalendarName, logr)

	router := newRouter(cfg, logr, routerDeps{
		auth:    handler.NewAuthHandler(authSvc),
		events:  handler.NewEventHandler(eventSvc, exportSvc),
		metrics: handler.NewMetricsHandler(metrics, db),
		tokens:  authSvc,
		stats:   metrics,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logr.Info("shutting down")
		err := srv.Shutdown(shutdownCtx)
		if auditQueue != nil {
			auditQueue.Stop()
		}
		return err
	})

	return g.Wait()
}

type routerDeps struct {
	auth    *handler.AuthHandler
	events  *handler.EventHandler
	metrics *handler.MetricsHandler
	tokens  middleware.TokenValidator
	stats   *service.MetricsService
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.stats))

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", deps.auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.tokens))
	secured.GET("/auth/me", deps.auth.Me)

	view := middleware.RequireAction(policy.ActionViewEvents)
	events := secured.Group("/events")
	events.GET("", view, deps.events.List)
	events.GET("/status-summary", view, deps.events.StatusSummary)
	events.GET("/export", view, deps.events.Export)
	events.GET("/status/:status", view, deps.events.ListByStatus)
	events.GET("/:id", view, deps.events.Get)
	events.GET("/:id/history", middleware.RequireAction(policy.ActionViewHistory), deps.events.History)
	events.POST("", middleware.RequireAction(policy.ActionCreateEvent), deps.events.Create)
	events.PUT("/:id", middleware.RequireAction(policy.ActionUpdateEvent), deps.events.Update)
	events.PUT("/:id/status", middleware.RequireAction(policy.ActionUpdateStatus), deps.events.UpdateStatus)
	events.DELETE("/:id", middleware.RequireAction(policy.ActionDeleteEvent), deps.events.Delete)

	return r
}

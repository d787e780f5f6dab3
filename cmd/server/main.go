package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleet-alerts/internal/alerting"
	"fleet-alerts/internal/api/routes"
	"fleet-alerts/internal/config"
	"fleet-alerts/internal/metrics"
	"fleet-alerts/internal/models"
	"fleet-alerts/internal/repository"
	"fleet-alerts/internal/services"
	"fleet-alerts/pkg/cache"
	"fleet-alerts/pkg/database"
	"fleet-alerts/pkg/email"
	"fleet-alerts/pkg/jwt"
	"fleet-alerts/pkg/logger"
	"fleet-alerts/pkg/ratelimit"
	"fleet-alerts/pkg/redis"
	"fleet-alerts/pkg/scheduler"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	location, err := cfg.Alerting.Location()
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := database.Connect(connectCtx, cfg.MongoURI, log)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.Disconnect(ctx, db.Client()); err != nil {
			log.Warn("failed to disconnect from MongoDB", zap.Error(err))
		}
	}()

	alertStore, sqlDB, err := openAlertStore(cfg, db, log)
	if err != nil {
		return err
	}
	if sqlDB != nil {
		defer func() { _ = database.CloseSQL(sqlDB) }()
	}

	var (
		redisClient *redis.Client
		locker      alerting.Locker = alerting.NewLocalLocker()
		limiter     ratelimit.Limiter
	)
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(cfg.Redis, log)
		defer redisClient.Close()

		healthStatus := redisClient.HealthCheck(context.Background())
		if healthStatus.IsConnected {
			log.Info("redis connected", zap.String("address", healthStatus.ConnectionInfo))
		} else {
			log.Warn("redis connection failed, will retry automatically",
				zap.String("address", healthStatus.ConnectionInfo),
				zap.String("error", healthStatus.Error),
			)
		}

		locker = alerting.ChainLockers(locker, redis.NewLocker(redisClient, cfg.Alerting.LockTTL, log))
		limiter = ratelimit.NewRedisLimiter(redisClient, ratelimit.DefaultConfig())
	} else {
		log.Info("redis not configured, using in-process locks and rate limits")
		limiter = ratelimit.NewMemoryLimiter(ratelimit.DefaultConfig())
	}
	locker = alerting.WithWait(locker, cfg.Alerting.LockWait)

	alertService := services.NewAlertService(alertStore, locker, log)
	if redisClient != nil {
		cacheConfig := cache.DefaultCacheConfig()
		cacheConfig.StatsTTL = cfg.Alerting.StatsCacheTTL
		alertService.SetCacheConfig(cacheConfig)
		alertService.SetCacheManager(cache.NewRedisCacheManager(redisClient, cacheConfig, log))
	}

	mailer := email.NewMailer(cfg.SMTP, log)
	if !mailer.IsConfigured() {
		log.Warn("smtp not configured, alert emails are disabled")
	}
	dispatcher := alerting.NewDispatcher(repository.NewUserRepository(db), mailer, cfg.SMTP.SendTimeout, log)
	dispatcher.SetRecorder(metrics.Recorder{})

	clock := alerting.Clock(time.Now).In(location)
	engine := alerting.NewEngine(alertStore, dispatcher, locker, clock, log)
	engine.SetRecorder(metrics.Recorder{})
	engine.SetStatsInvalidator(alertService)
	engine.Register(alerting.NewDocumentEvaluator(
		repository.NewTruckRepository(db),
		repository.NewDriverRepository(db),
		clock,
		cfg.Alerting.DocumentHorizonDays,
	))
	engine.Register(alerting.NewStockEvaluator(
		repository.NewPartRepository(db),
		repository.NewStockRepository(db),
		clock,
	))
	engine.Register(alerting.NewMaintenanceEvaluator(
		repository.NewMaintenanceRepository(db),
		clock,
		cfg.Alerting.MaintenanceHorizonDays,
	))

	sched := scheduler.New(location, log)
	if err := scheduleChecks(sched, engine, cfg.Alerting, log); err != nil {
		return err
	}
	sched.Start()

	if cfg.Alerting.RunOnStart {
		go func() {
			for _, job := range sched.Jobs() {
				if job.Name == purgeJob {
					continue
				}
				if err := sched.RunNow(job.Name); err != nil {
					log.Warn("startup check not triggered", zap.String("job", job.Name), zap.Error(err))
				}
			}
		}()
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	routes.SetupRoutes(router, routes.Dependencies{
		AlertService: alertService,
		Checks:       engine,
		JWT:          jwt.NewJWTUtil(cfg.JWTSecret, cfg.JWTExpiry),
		Limiter:      limiter,
		DB:           db,
		SQLDB:        sqlDB,
		Redis:        redisClient,
		Jobs:         sched,
		Logger:       log,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown incomplete", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn("scheduled checks still running at shutdown", zap.Error(err))
	}
	return nil
}

// openAlertStore returns the configured alert store. Alerts live in Mongo
// next to the source records unless a SQL driver is selected.
func openAlertStore(cfg *config.Config, db *mongo.Database, log *zap.Logger) (services.AlertRepository, *gorm.DB, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres, config.StoreDriverSQLite:
		sqlDB, err := database.OpenSQL(cfg.Store.Driver, cfg.Store.DSN, log, &models.Alert{})
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLAlertRepository(sqlDB), sqlDB, nil
	default:
		return repository.NewAlertRepository(db), nil, nil
	}
}

const purgeJob = "purge-resolved-alerts"

func scheduleChecks(sched *scheduler.Scheduler, engine *alerting.Engine, cfg config.AlertingConfig, log *zap.Logger) error {
	checks := []struct {
		name string
		at   string
		t    models.AlertType
	}{
		{"document-check", cfg.DocumentCheckAt, models.AlertTypeDocument},
		{"stock-check", cfg.StockCheckAt, models.AlertTypeStock},
		{"maintenance-check", cfg.MaintenanceCheckAt, models.AlertTypeMaintenance},
	}

	for _, check := range checks {
		t := check.t
		err := sched.AddDaily(check.name, check.at, func(ctx context.Context) {
			result, err := engine.Run(ctx, t)
			if err != nil {
				// already logged by the engine; the next day's pass retries
				return
			}
			log.Info("scheduled check finished",
				zap.String("alert_type", string(t)),
				zap.Int("created", result.Created),
				zap.Int("updated", result.Updated),
				zap.Int("resolved", result.Resolved),
			)
		})
		if err != nil {
			return fmt.Errorf("schedule %s: %w", check.name, err)
		}
	}

	retention := time.Duration(cfg.ResolvedRetentionDays) * 24 * time.Hour
	return sched.AddDaily(purgeJob, cfg.PurgeAt, func(ctx context.Context) {
		if _, err := engine.PurgeResolved(ctx, retention); err != nil {
			log.Error("purge of resolved alerts failed", zap.Error(err))
		}
	})
}

func corsConfig(allowedOrigins []string) cors.Config {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Retry-After"},
	}

	// wildcard origin for development
	if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = allowedOrigins
		corsConfig.AllowCredentials = true
	}
	return corsConfig
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/facility-reservation/internal/booking"
	"github.com/iliyamo/facility-reservation/internal/config"
	"github.com/iliyamo/facility-reservation/internal/database"
	"github.com/iliyamo/facility-reservation/internal/handler"
	"github.com/iliyamo/facility-reservation/internal/logger"
	"github.com/iliyamo/facility-reservation/internal/middleware"
	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/queue"
	"github.com/iliyamo/facility-reservation/internal/repository"
	"github.com/iliyamo/facility-reservation/internal/router"
	"github.com/iliyamo/facility-reservation/internal/service"
)

// redisPinger adapts *redis.Client to handler.Pinger.
type redisPinger struct{ *redis.Client }

func (r redisPinger) PingContext(ctx context.Context) error { return r.Ping(ctx).Err() }

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf(context.Background(), "config: %v", err)
	}
	logger.Setup(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Params{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		logger.Fatalf(ctx, "database: %v", err)
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logger.Fatalf(ctx, "migrate: %v", err)
		}
		logger.InfoKV(ctx, "schema applied")
	}

	users := repository.NewUserRepo(db)
	if err := seedAdmin(ctx, cfg, users); err != nil {
		logger.Fatalf(ctx, "seed admin: %v", err)
	}

	ready := map[string]handler.Pinger{"mysql": db}
	rdb := config.NewRedisClient(ctx)
	if rdb != nil {
		defer rdb.Close()
		ready["redis"] = redisPinger{rdb}
	} else {
		logger.WarnKV(ctx, "redis unavailable; rate limiting and cache disabled")
	}

	var notifier booking.Notifier
	if cfg.RabbitMQURL != "" {
		pub := service.NewPublisher(cfg.RabbitMQURL, cfg.EventQueue)
		defer pub.Close()
		notifier = pub
		startAuditConsumer(ctx, cfg)
	} else {
		logger.InfoKV(ctx, "RABBITMQ_URL not set; booking events are not published")
	}

	store := repository.NewMySQLStore(db)
	engine := booking.NewEngine(store, notifier)
	catalog := booking.NewCatalog(store)

	cacheCfg := config.LoadCacheConfig()
	e := echo.New()
	e.HideBanner = true
	router.Use(e, config.LoadRateLimitConfig(), cacheCfg, rdb)
	router.RegisterRoutes(e, ready)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, repository.NewTokenRepo(db)), cfg.JWTSecret)
	router.RegisterFacilities(e, handler.NewFacilityHandler(catalog, engine), cfg.JWTSecret, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterBookings(e, handler.NewBookingHandler(engine), cfg.JWTSecret)

	go func() {
		addr := ":" + cfg.Port
		logger.InfoKV(ctx, "listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf(ctx, "server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.InfoKV(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.ErrorKV(shutdownCtx, "shutdown failed", "error", err)
	}
}

// seedAdmin creates the ADMIN_EMAIL account on first start so the
// catalog and staff accounts can be managed.
func seedAdmin(ctx context.Context, cfg config.Config, users *repository.UserRepo) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	_, err := users.GetByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}
	id, err := users.Create(ctx, cfg.AdminEmail, cfg.AdminPassword, model.RoleAdmin, cfg.BcryptCost)
	if err != nil && !errors.Is(err, repository.ErrEmailExists) {
		return err
	}
	logger.InfoKV(ctx, "admin account created", "user_id", id)
	return nil
}

// startAuditConsumer runs the audit consumer until ctx is cancelled.
func startAuditConsumer(ctx context.Context, cfg config.Config) {
	audit, err := queue.NewAuditLogger(cfg.AuditLogPath)
	if err != nil {
		logger.ErrorKV(ctx, "audit log unavailable; consumer not started", "error", err)
		return
	}
	c := &queue.AuditConsumer{URL: cfg.RabbitMQURL, Queue: cfg.EventQueue, Audit: audit}
	go func() {
		defer audit.Sync()
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.ErrorKV(ctx, "audit consumer stopped", "error", err)
		}
	}()
}

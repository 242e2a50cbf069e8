// main.go
//
// Stepio record service: the per-family health routine store behind the Stepio apps
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of stepio.
// stepio is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// stepio is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with stepio.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"go.uber.org/zap"

	"github.com/localnerve/stepio/internal/config"
	"github.com/localnerve/stepio/internal/database"
	"github.com/localnerve/stepio/internal/handlers"
	"github.com/localnerve/stepio/internal/logger"
	"github.com/localnerve/stepio/internal/middleware"
	"github.com/localnerve/stepio/internal/notifications"
	"github.com/localnerve/stepio/internal/reconcile"
	"github.com/localnerve/stepio/internal/services"
	"github.com/localnerve/stepio/internal/store"
	"github.com/localnerve/stepio/internal/utils"

	_ "github.com/localnerve/stepio/docs/api" // Swagger docs
)

// @title Stepio API
// @version 1.0.0
// @description Health routine records for families: children, medications, appointments, diary, therapy plans and reminders
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/stepio
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	var envFile string
	flag.StringVar(&envFile, "env-file", "", "path to a .env file")
	flag.Parse()

	// Load configuration
	if err := config.LoadEnvFile(envFile); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat, "stepio")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	// Connect to database
	db, err := database.Connect(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		zlog.Fatal("failed to run migrations", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
	}

	records := services.NewRecordStore(db, zlog)
	billing := services.NewBillingClient(cfg.BillingURL, cfg.BillingAPIKey, zlog)
	stores := store.NewManager(records, schedulerFactory(cfg, rdb, zlog), zlog,
		store.WithAdminOverride(reconcile.AdminOverride{Enabled: cfg.AdminOverride, Email: cfg.AdminEmail}))
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if idle := cfg.RecordIdle(); idle > 0 {
		go stores.RunIdleSweeper(sweepCtx, idle, time.Minute)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: utils.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("stepio")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API routes under /api
	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()
		deps := services.HealthDeps{DB: db, Logger: zlog}
		if rdb != nil {
			deps.Redis = rdb
		}
		result := services.HealthCheck(ctx, cfg, deps)
		status := fiber.StatusOK
		if result.Status == services.StatusUnhealthy {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(result)
	})

	api.Use(middleware.Locale(cfg.Location()))
	api.Get("/stepio/catalog", handlers.GetCatalog)

	authn := []fiber.Handler{}
	if cfg.AuthzURL != "" {
		authn = append(authn, middleware.InitAuthorizer(cfg, zlog))
	}
	authn = append(authn, middleware.AuthUser(cfg.AuthzURL != "", cfg.JWTSecret))

	stepio := &handlers.StepioHandler{
		Stores:  stores,
		Records: records,
		Billing: billing,
		Logger:  zlog,
	}
	stepio.Register(api.Group("/stepio", authn...))

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return utils.NotFoundResponse(c, "[404] Resource Not Found")
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		zlog.Info("gracefully shutting down")
		_ = app.Shutdown()
	}()

	// Start server
	zlog.Info("starting server", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Error("server stopped with error", zap.Error(err))
	}

	// pending record writes land before the database closes
	stopSweep()
	stores.Close()
	zlog.Info("server stopped")
}

// schedulerFactory picks the reminder platform: redis when configured, an
// in-process one otherwise, none when notifications are disabled.
func schedulerFactory(cfg *config.Config, rdb *redis.Client, zlog *zap.Logger) store.SchedulerFactory {
	return func(userID string, loc *time.Location) store.AlarmScheduler {
		var platform notifications.Platform
		switch {
		case !cfg.NotificationsEnabled:
			platform = notifications.UnsupportedPlatform{}
		case rdb != nil:
			platform = notifications.NewRedisPlatform(rdb, cfg.RedisKeyPrefix, userID)
		default:
			platform = notifications.NewMemoryPlatform(false)
		}
		return notifications.NewEngine(platform, zlog.With(zap.String("user_id", userID)), notifications.WithLocation(loc))
	}
}

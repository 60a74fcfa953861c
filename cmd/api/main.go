package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/transitpulse/transitpulse_core/internal/aggregate"
	"github.com/transitpulse/transitpulse_core/internal/api"
	"github.com/transitpulse/transitpulse_core/internal/cache"
	"github.com/transitpulse/transitpulse_core/internal/config"
	"github.com/transitpulse/transitpulse_core/internal/eta"
	"github.com/transitpulse/transitpulse_core/internal/scheduler"
	"github.com/transitpulse/transitpulse_core/internal/upstream"
	"github.com/transitpulse/transitpulse_core/internal/views"
)

func main() {
	log.Println("Starting TransitPulse API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("✓ Configuration loaded")

	// Remote cache is optional; fall back to memory-only on any failure.
	remote := cache.NewNoopCache()
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(cache.RemoteConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS:      cfg.Redis.TLS,
		})
		if err != nil {
			log.Printf("Warning: Redis unavailable, continuing memory-only: %v", err)
		} else {
			remote = rc
			log.Println("✓ Redis connection established")
		}
	}

	store := cache.NewStore(remote)
	hydrateCtx, cancelHydrate := context.WithTimeout(context.Background(), 10*time.Second)
	store.Hydrate(hydrateCtx)
	cancelHydrate()

	client := upstream.NewClient(upstream.Config{
		BaseURL:     cfg.Upstream.BaseURL,
		APIKey:      cfg.Upstream.APIKey,
		MaxRequests: cfg.Upstream.MaxRequests,
		Window:      time.Duration(cfg.Upstream.WindowSeconds) * time.Second,
		MinSpacing:  time.Duration(cfg.Upstream.MinSpacingMs) * time.Millisecond,
		MaxAttempts: cfg.Upstream.MaxAttempts,
		BackoffBase: time.Duration(cfg.Upstream.BackoffBaseMs) * time.Millisecond,
		BackoffCap:  time.Duration(cfg.Upstream.BackoffCapMs) * time.Millisecond,
		Timeout:     time.Duration(cfg.Upstream.RequestTimeoutSecs) * time.Second,
	})

	blender := eta.NewBlender(&eta.APIProvider{Client: client})
	snapshots := eta.NewSnapshotService(blender, store)
	aggregateService := aggregate.NewService(store, snapshots)
	viewBuilder := views.NewBuilder(store, client)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	sched := scheduler.New(client, store, scheduler.Intervals{
		Vehicles:    time.Duration(cfg.Polling.VehiclesSeconds) * time.Second,
		Predictions: time.Duration(cfg.Polling.PredictionsSeconds) * time.Second,
		Alerts:      time.Duration(cfg.Polling.AlertsSeconds) * time.Second,
		Static:      time.Duration(cfg.Polling.StaticHours) * time.Hour,
		ChunkDelay:  time.Duration(cfg.Polling.ChunkDelayMs) * time.Millisecond,
	})
	sched.Start(ctx)
	log.Println("✓ Polling scheduler started")

	app := fiber.New(fiber.Config{
		AppName:      "TransitPulse API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	handlers := &api.Handlers{
		Aggregate: aggregateService,
		Views:     viewBuilder,
		Store:     store,
		Client:    client,
	}
	handlers.Register(app)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		stop()
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("🚀 Server listening on http://localhost%s", addr)
	log.Printf("🏠 Home snapshot: http://localhost%s/api/home?lat=LAT&lng=LNG", addr)
	log.Printf("❤️  Health check: http://localhost%s/api/health", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// customErrorHandler handles errors returned from handlers
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

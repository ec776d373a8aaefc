package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"raffle-storefront/internal/cache"
	"raffle-storefront/internal/config"
	"raffle-storefront/internal/gateway"
	"raffle-storefront/internal/handler"
	"raffle-storefront/internal/middleware"
	"raffle-storefront/internal/repository"
	"raffle-storefront/internal/router"
	"raffle-storefront/internal/service"
	"raffle-storefront/internal/session"

	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting raffle storefront...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize activity repository based on config
	var activityRepo repository.ActivityRepository
	switch strings.ToLower(cfg.ActivityDB.Type) {
	case "mysql":
		mysqlRepo, err := repository.NewMySQLActivityRepository(cfg.ActivityDB.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL: %v", err)
		}
		activityRepo = mysqlRepo
		log.Println("MySQL activity repository initialized")
	case "postgres", "postgresql":
		pgRepo, err := repository.NewPostgresActivityRepository(cfg.ActivityDB.PostgresDSN())
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		activityRepo = pgRepo
		log.Println("PostgreSQL activity repository initialized")
	default: // sqlite
		sqliteRepo, err := repository.NewSQLiteActivityRepository(cfg.ActivityDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		activityRepo = sqliteRepo
		log.Println("SQLite activity repository initialized")
	}
	defer activityRepo.Close()

	// Initialize Redis client (optional unless SESSION_STORE=redis)
	needRedis := strings.EqualFold(cfg.Session.Store, "redis") || cfg.ActivityDB.Buffered
	var redisClient *redis.Client
	if needRedis {
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		switch {
		case err == nil:
			redisClient = client
			log.Println("Redis client initialized")
		case strings.EqualFold(cfg.Session.Store, "redis"):
			log.Fatalf("Redis is required for SESSION_STORE=redis: %v", err)
		default:
			log.Printf("Warning: Redis connection failed, activity buffer disabled: %v", err)
		}
	}

	// Session store
	var sessionCache cache.Cache
	if redisClient != nil && strings.EqualFold(cfg.Session.Store, "redis") {
		sessionCache = cache.NewRedisCache(redisClient, cfg.Cache.KeyPrefix+":cache")
	} else {
		sessionCache = cache.NewMemoryCache(time.Minute)
	}
	defer sessionCache.Close()
	sessions := session.NewStore(sessionCache, cfg.Session.TTL)

	// Activity journal, optionally buffered through Redis
	activityService := service.NewActivityService(activityRepo)
	var activityBuffer *cache.RedisActivityBuffer
	if cfg.ActivityDB.Buffered && redisClient != nil {
		activityBuffer = cache.NewRedisActivityBuffer(
			redisClient,
			cfg.Cache.KeyPrefix,
			cfg.ActivityDB.FlushInterval,
			service.CreateFlushFunc(activityRepo),
		)
		activityService.SetBuffer(activityBuffer)
		log.Println("Redis activity buffer initialized")
	}

	// Remote raffle service
	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout, cfg.Gateway.PageSize)

	storefront := service.NewStorefront(service.StorefrontConfig{
		Auth: gw,
		APIFor: func(src gateway.TokenSource) service.RaffleAPI {
			return gw.ForSession(src)
		},
		Sessions:       sessions,
		Journal:        activityService,
		RequestID:      middleware.GetRequestID,
		CloseDelay:     cfg.Batch.CloseDelay,
		MaxConcurrency: cfg.Batch.MaxConcurrency,
	})

	cleanup := service.NewCleanupScheduler(activityService, service.CleanupConfig{
		Retention:       cfg.ActivityDB.Retention,
		CleanupInterval: cfg.ActivityDB.CleanupEvery,
	})
	cleanup.Start()

	// Expired sessions release their boards even if never resolved again
	sessionSweep := service.NewCleanupScheduler(nil, service.CleanupConfig{
		CleanupInterval: cfg.Session.SweepInterval,
		InitialDelay:    cfg.Session.SweepInterval,
		Sweeper:         storefront,
	})
	sessionSweep.Start()

	// Initialize handlers
	checks := map[string]handler.ReadinessCheck{}
	if redisClient != nil {
		checks["redis"] = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(ctx).Err()
		}
	}
	healthHandler := handler.New(cfg.App.Name, cfg.App.Version, checks)
	authHandler := handler.NewAuthHandler(storefront)
	boardHandler := handler.NewBoardHandler(storefront)
	activityHandler := handler.NewActivityHandler(activityService)
	adminHandler := handler.NewAdminHandler(storefront, activityService, cfg.App.LoginKey, cfg.ActivityDB.Type)

	// Create auth middleware with injected dependencies (NO GLOBALS!)
	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		Sessions: storefront,
	})

	// Create router
	r := router.New(router.Config{
		Handler:         healthHandler,
		AuthHandler:     authHandler,
		BoardHandler:    boardHandler,
		ActivityHandler: activityHandler,
		AdminHandler:    adminHandler,
		AuthMiddleware:  authMiddleware,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// In-flight clicks and batches have settled once Shutdown returns
	sessionSweep.Stop()
	storefront.Close()
	cleanup.Stop()
	activityService.Wait()

	// Close the buffer before the client it drains through
	if activityBuffer != nil {
		log.Println("Closing activity buffer...")
		activityBuffer.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}

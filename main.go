// Package main provides the main entry point for the pickup SMS service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/citystash/pickup-sms/app/handlers"
	"github.com/citystash/pickup-sms/app/router"
	"github.com/citystash/pickup-sms/app/scheduler"
	"github.com/citystash/pickup-sms/app/services"
	"github.com/citystash/pickup-sms/config"
	"github.com/citystash/pickup-sms/repository"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	stopFuncs []func()
}

func main() {
	log.Println("Starting pickup-sms application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeTransport selects the SMS transport based on configuration
func initializeTransport(cfg *config.ProductionConfig) services.SMSService {
	switch cfg.SMS.ProviderDomain {
	case "mock":
		log.Println("Using mock SMS transport; nothing will be delivered")
		return services.NewMockSMSService()
	default:
		return services.NewSMSService(&cfg.SMS)
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second))

	// Initialize repositories
	bookingRepo := repository.NewBookingRepository(db)
	sendLogRepo := repository.NewSendLogRepository(db)
	jobRunRepo := repository.NewJobRunRepository(db)
	guardRepo := repository.NewSentReviewRequestRepository(db)
	optOutRepo := repository.NewOptOutRepository(rc, cfg.Cache.OptOutPrefix)

	// Load the review-link pool; an empty pool is survivable because the
	// pipeline records skips for unresolvable cities
	linkStore := services.NewReviewLinkStore()
	if rows, err := linkStore.LoadCSVFile(cfg.ReviewLinks.FilePath); err != nil {
		log.Printf("Review link load from %s failed: %v", cfg.ReviewLinks.FilePath, err)
	} else {
		log.Printf("Loaded %d review link rows across %d cities", rows, linkStore.Cities())
	}

	// Sending stack
	transport := initializeTransport(cfg)
	sender := services.NewThrottledSender(transport, cfg.SMS.SendDelay, cfg.SMS.DryRun)

	jobLogger := scheduler.NewJobLogger(cfg.Logging)
	pipeline := scheduler.NewPipeline(
		bookingRepo,
		jobRunRepo,
		sendLogRepo,
		guardRepo,
		optOutRepo,
		linkStore,
		sender,
		cfg.ReviewLinks.FallbackCity,
		jobLogger,
	)
	runner := scheduler.NewJobRunner(pipeline, rc, cfg.Cache.RunLockPrefix, cfg.Scheduler.RunLockTTL, jobLogger)

	// Background job timers
	sched := scheduler.NewScheduler(runner, cfg.Scheduler, jobLogger)
	stopFuncs = append(stopFuncs, sched.Start(context.Background()))

	// Handlers
	jobHandler := handlers.NewJobHandler(runner, jobRunRepo)
	optOutHandler := handlers.NewOptOutHandler(optOutRepo)
	webhookHandler := handlers.NewWebhookHandler(optOutRepo, cfg.Security.WebhookToken)
	reviewLinkHandler := handlers.NewReviewLinkHandler(linkStore, cfg.ReviewLinks.FilePath)
	dashboardHandler := handlers.NewDashboardHandler(runner, jobRunRepo)

	r := router.NewFiberRouter(cfg, jobHandler, optOutHandler, webhookHandler, reviewLinkHandler, dashboardHandler)

	return &Application{
		router:    r,
		config:    cfg,
		stopFuncs: stopFuncs,
	}, nil
}

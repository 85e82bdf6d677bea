// Package main provides the main entry point for the Kreativia mailing dispatch engine
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/app/dispatch"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/app/handlers"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/app/router"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/app/services"
	businessflow "github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/business_flow"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/config"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Kreativia mailing dispatch engine...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
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

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s", cfg.RedisURL)
	return rc, nil
}

// initializeDeliverer selects the delivery client based on configuration
func initializeDeliverer(cfg *config.ProductionConfig) dispatch.Deliverer {
	if cfg.Delivery.UseMock {
		log.Println("Using mock delivery client")
		return services.NewMockDeliverer()
	}
	return services.NewRelayDeliverer(&cfg.Delivery)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Dispatch.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid dispatch timezone %q: %w", cfg.Dispatch.Timezone, err)
	}

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(db)
	salespersonRepo := repository.NewSalespersonRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	campaignLeadRepo := repository.NewCampaignLeadRepository(db)
	queueRepo := repository.NewEmailQueueRepository(db)
	mailboxRepo := repository.NewMailboxRepository(db)
	sendLogRepo := repository.NewSendLogRepository(db)
	holidayRepo := repository.NewHolidayRepository(db)
	settingsRepo := repository.NewPlatformSettingsRepository(db)

	// Initialize services
	holidayService := services.NewHolidayService(holidayRepo, rc, cfg.Holiday, cfg.Cache, log.Default())
	deliverer := initializeDeliverer(cfg)

	// Initialize the dispatch engine
	window := dispatch.NewWindowValidator(holidayService, loc)
	pacing := dispatch.NewPacingCalculator()
	pool := dispatch.NewIdentityPool(mailboxRepo, salespersonRepo, settingsRepo, queueRepo)
	queue := dispatch.NewDispatchQueue(queueRepo, campaignLeadRepo, sendLogRepo, pacing, window, cfg.Dispatch.QueueBufferSize)

	workers := dispatch.NewWorkerPool(db, campaignRepo, campaignLeadRepo, queueRepo, mailboxRepo, sendLogRepo,
		queue, pacing, deliverer, cfg.Dispatch, nil)
	dispatcher := dispatch.NewDispatcher(db, campaignRepo, campaignLeadRepo, leadRepo, queueRepo, mailboxRepo,
		sendLogRepo, pool, queue, pacing, window, workers, cfg.Dispatch, nil)
	sweeper := dispatch.NewSweeper(campaignRepo, campaignLeadRepo, queueRepo, queue, cfg.Dispatch, nil)
	estimator := dispatch.NewEstimator(campaignRepo, campaignLeadRepo, mailboxRepo, pool, window, nil)

	sched := dispatch.NewDispatchScheduler(campaignRepo, campaignLeadRepo, queueRepo, mailboxRepo,
		dispatcher, sweeper, estimator, queue, holidayService, window, cfg.Dispatch)

	workers.Start(context.Background())
	stopScheduler := sched.Start(context.Background())

	// Scheduler first so no new work is submitted while the pool drains
	stopFuncs = append(stopFuncs, stopScheduler, workers.Stop)

	// Initialize flows and handlers
	campaignFlow := businessflow.NewCampaignFlow(campaignRepo, campaignLeadRepo, queueRepo, sendLogRepo, queue, window, db)
	campaignHandler := handlers.NewCampaignHandler(campaignFlow)

	appRouter := router.NewFiberRouter(campaignHandler, cfg.Metrics)

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}

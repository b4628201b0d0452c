package main

import (
	"fmt"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/echoscribehq/echoscribe/app/controllers"
	"github.com/echoscribehq/echoscribe/internal/pkg/billing"
	"github.com/echoscribehq/echoscribe/internal/pkg/cache"
	"github.com/echoscribehq/echoscribe/internal/pkg/database"
	"github.com/echoscribehq/echoscribe/internal/pkg/env"
	"github.com/echoscribehq/echoscribe/internal/pkg/jobqueue"
	"github.com/echoscribehq/echoscribe/internal/pkg/router"
	"github.com/echoscribehq/echoscribe/internal/pkg/s3backup"
	"github.com/echoscribehq/echoscribe/internal/pkg/usage"
)

func main() {
	app, queue := NewApplication()
	queue.Start()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	queue.Stop()
	log.Fatal(err)
}

// NewApplication wires the whole service: database, cache, billing pipeline,
// job queue and HTTP routes. Everything is constructed here and injected
// down; no package keeps its own singleton.
func NewApplication() (*fiber.App, *jobqueue.Queue) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()

	billingCfg, err := billing.LoadConfig()
	if err != nil {
		log.Fatalf("billing config: %v", err)
	}

	billingRepo := billing.NewRepository(db)
	dispatcher := billing.NewDispatcher(billingRepo)
	subscriptions := billing.NewSubscriptionHandler(billingRepo)
	dispatcher.Register(billing.EventSubscriptionCreated, subscriptions.HandleEvent)
	dispatcher.Register(billing.EventSubscriptionUpdated, subscriptions.HandleEvent)
	dispatcher.Register(billing.EventSubscriptionCanceled, subscriptions.HandleEvent)

	ledger := usage.NewLedger(usage.NewRepository(db), billingRepo)

	workers, _ := strconv.Atoi(env.GetEnv("JOB_WORKERS", "3"))
	queue := jobqueue.NewQueue(cache.GetClient(), workers)

	s3Cfg, err := s3backup.LoadConfig()
	if err != nil {
		log.Fatalf("s3 config: %v", err)
	}
	if s3Cfg.IsEnabled() {
		s3Client, err := s3backup.NewClient(s3Cfg)
		if err != nil {
			log.Fatalf("s3 client: %v", err)
		}
		archiver := jobqueue.NewArchiveProcessor(db, s3Cfg, s3Client)
		queue.RegisterProcessor(jobqueue.JobTypeS3Archive, archiver.Process)
	}

	mediaProcessor := jobqueue.NewMediaProcessor(db, ledger, queue, s3Cfg.IsEnabled())
	queue.RegisterProcessor(jobqueue.JobTypeMediaProcessing, mediaProcessor.Process)
	queue.RegisterFailureHandler(jobqueue.JobTypeMediaProcessing, mediaProcessor.HandleFailure)

	// init fiber app; the body limit covers the largest plan's upload cap
	app := fiber.New(fiber.Config{
		BodyLimit: 2*1024*1024*1024 + 1024*1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app, router.Controllers{
		Webhook: controllers.NewWebhookController(dispatcher, billingCfg),
		Upload:  controllers.NewAPIUploadController(db, ledger, billingRepo, queue),
		Usage:   controllers.NewAPIUsageController(ledger),
	})

	return app, queue
}

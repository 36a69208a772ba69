package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"

	config "github.com/epicdm/campaignflow/configs"
	"github.com/epicdm/campaignflow/internal/api/handlers"
	"github.com/epicdm/campaignflow/internal/models"
	"github.com/epicdm/campaignflow/internal/platform"
	"github.com/epicdm/campaignflow/internal/queue"
	"github.com/epicdm/campaignflow/internal/ratelimit"
	"github.com/epicdm/campaignflow/internal/repository"
	"github.com/epicdm/campaignflow/internal/service"
	"github.com/epicdm/campaignflow/internal/telemetry"
	"github.com/epicdm/campaignflow/internal/validator"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	queueClient := queue.NewClient(redisConn)
	defer queueClient.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Tenant-ID",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	jobRepo := repository.NewJobRepository(db)
	postRepo := repository.NewPostRepository(db)
	variationRepo := repository.NewVariationRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	brandRepo := repository.NewBrandRepository(db)
	accountRepo := repository.NewSocialAccountRepository(db)
	windowRepo := repository.NewPostingWindowRepository(db)

	limiter := ratelimit.NewMemoryLimiter(cfg.RateWindow, ratelimit.DefaultScopeLimits)

	registry := platform.NewRegistry()
	if bridgeURL := os.Getenv("PUBLISH_BRIDGE_URL"); bridgeURL != "" {
		for _, p := range platform.All() {
			registry.Register(p, platform.NewBridgeClient(bridgeURL, p))
		}
	}

	mediaService := service.NewMediaService(*cfg)
	jobService := service.NewJobService(jobRepo, brandRepo, queueClient, *cfg)
	retryService := service.NewRetryService(postRepo, variationRepo, attemptRepo, accountRepo, registry, limiter, mediaService, cfg.RetryBatchSize)
	publisherService := service.NewPublisherService(postRepo, variationRepo, attemptRepo, accountRepo, registry, limiter, mediaService, retryService, cfg.PublishWorkers)
	autoScheduleService := service.NewAutoScheduleService(windowRepo, postRepo)

	api := app.Group("/api")

	job := handlers.NewJobHandler(jobService)
	api.Post("/jobs/enqueue", job.EnqueueJob)
	api.Get("/jobs", job.ListJobs)
	api.Get("/jobs/info", job.GetJob)
	api.Post("/jobs/cancel", job.CancelJob)
	api.Post("/jobs/retry", job.RetryJob)

	schedule := handlers.NewScheduleHandler(autoScheduleService)
	api.Get("/schedule/slots", schedule.PreviewSlots)
	api.Post("/schedule/assign", schedule.AssignSlots)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media/upload", media.UploadAsset)

	app.Get("/metrics", adaptor.HTTPHandler(telemetry.Handler()))

	// cron jobs
	c := cron.New()
	c.AddFunc("@every 00h01m00s", publisherService.Run)
	c.AddFunc("@every 00h05m00s", func() {
		if err := jobService.Reconcile(context.Background()); err != nil {
			log.Printf("Reconcile sweep failed: %v", err)
		}
	})
	c.Start()

	// queue worker
	worker := queue.NewWorker(jobRepo)
	worker.Register(models.JobTypePublishPost, func(ctx context.Context, j *models.Job) (json.RawMessage, error) {
		var payload validator.PublishPostPayload
		if err := json.Unmarshal(j.Payload, &payload); err != nil {
			return nil, err
		}
		if err := publisherService.PublishUnit(ctx, payload.PostID); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]int64{"post_id": payload.PostID})
	})

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency:    10,
			Queues:         queue.Queues(),
			StrictPriority: true,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeRunJob, worker.HandleRunJobTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on %s", cfg.ListenAddr)

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	config "github.com/maheshrc27/social-scheduler/configs"
	"github.com/maheshrc27/social-scheduler/internal/api"
	"github.com/maheshrc27/social-scheduler/internal/app"
	job "github.com/maheshrc27/social-scheduler/internal/jobs"
	"github.com/maheshrc27/social-scheduler/internal/queue"
	"github.com/maheshrc27/social-scheduler/internal/service"
	"github.com/maheshrc27/social-scheduler/internal/telemetry"
	"github.com/robfig/cron"
)

func main() {
	telemetry.SetupLogger()
	cfg := config.LoadConfig()
	ctx := context.Background()

	db, postRepo, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	dispatcher, closeDispatcher, err := app.NewDispatcher(ctx, cfg)
	if err != nil {
		closeDB(db)
		log.Fatalf("Failed to set up dispatch: %v", err)
	}

	var media service.MediaService
	if cfg.R2.AccountID != "" {
		storage, err := service.NewR2Storage(ctx, cfg.R2)
		if err != nil {
			closeDB(db)
			log.Fatalf("Failed to set up media storage: %v", err)
		}
		media = service.NewMediaService(storage, cfg.MediaFolder, cfg.R2.PublicURL)
	} else {
		slog.Warn("R2 is not configured, uploads are disabled")
	}

	sweepService := service.NewSweepService(postRepo, dispatcher, cfg.Sweep.Concurrency, cfg.Dispatch.Timeout)
	reconcileService := service.NewReconcileService(postRepo, cfg.RequirePublishing)

	// Delayed per-post tasks run only when redis is available; the cron
	// sweep covers every post either way.
	var (
		asynqClient *asynq.Client
		asynqServer *asynq.Server
		scheduler   service.PostScheduler
	)
	if cfg.RedisURI != "" {
		redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
		asynqClient = asynq.NewClient(redisConn)
		scheduler = queue.NewScheduler(asynqClient)

		asynqServer = asynq.NewServer(redisConn, asynq.Config{
			Concurrency: cfg.Sweep.Concurrency,
			Logger:      asynqLogger{},
		})
		mux := asynq.NewServeMux()
		queue.NewQueue(sweepService).Register(mux)

		go func() {
			slog.Info("Starting the Asynq server...")
			if err := asynqServer.Run(mux); err != nil {
				log.Fatalf("Could not start Asynq server: %v", err)
			}
		}()
	}

	postService := service.NewPostService(postRepo, media, scheduler)

	fiberApp := api.NewApp(cfg, api.Services{
		Posts:      postService,
		Media:      media,
		Sweeper:    sweepService,
		Reconciler: reconcileService,
	}, api.Options{AccessLog: true})

	c := cron.New()
	if cfg.Sweep.Interval > 0 {
		sweepJob := job.NewSweepJob(sweepService, cfg.Sweep.Interval+cfg.Dispatch.Timeout)
		if err := c.AddFunc(job.Schedule(cfg.Sweep.Interval), sweepJob.Run); err != nil {
			log.Fatalf("Invalid sweep interval: %v", err)
		}
		c.Start()
		slog.Info("sweep scheduled", "interval", cfg.Sweep.Interval)
	} else {
		slog.Info("in-process sweep disabled, relying on /api/cron/publish")
	}

	go func() {
		if err := fiberApp.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	slog.Info("Server is running", "port", cfg.Port, "env", cfg.AppEnv, "driver", cfg.DatabaseDriver)

	gracefulShutdown(fiberApp, func() {
		c.Stop()
		if asynqServer != nil {
			asynqServer.Shutdown()
		}
		if asynqClient != nil {
			asynqClient.Close()
		}
		if err := closeDispatcher(); err != nil {
			slog.Error("Failed to close dispatcher", "error", err)
		}
		closeDB(db)
	})
}

func closeDB(db *sql.DB) {
	slog.Info("Closing database connection...")
	if err := db.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
		return
	}
	slog.Info("Database connection closed")
}

func gracefulShutdown(fiberApp *fiber.App, cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("Shutting down server...")

	if err := fiberApp.ShutdownWithTimeout(30 * time.Second); err != nil {
		slog.Error("Failed to shut down server", "error", err)
	}

	cleanup()
	slog.Info("Server shutdown complete.")
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { slog.Debug(fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...interface{})  { slog.Info(fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...interface{})  { slog.Warn(fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...interface{}) { slog.Error(fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...interface{}) { log.Fatal(args...) }

package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	config "github.com/maheshrc27/social-scheduler/configs"
	"github.com/maheshrc27/social-scheduler/internal/api/handlers"
	"github.com/maheshrc27/social-scheduler/internal/api/middleware"
	"github.com/maheshrc27/social-scheduler/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const webhookSecretHeader = "X-Webhook-Secret"

type Services struct {
	Posts      service.PostService
	Media      service.MediaService
	Sweeper    service.SweepService
	Reconciler service.ReconcileService
}

type Options struct {
	// AccessLog enables the fiber request logger.
	AccessLog bool
}

func NewApp(cfg *config.Config, s Services, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    service.MaxVideoSize + 10<<20,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(cors.New(corsConfig(cfg.FrontendURL)))

	Register(app, cfg, s)
	return app
}

func Register(app *fiber.App, cfg *config.Config, s Services) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	authMiddleware := middleware.NewAuthMiddleware(cfg.SecretKey)

	api := app.Group("/api")

	post := handlers.NewPostHandler(s.Posts)
	posts := api.Group("/posts", authMiddleware.AuthMiddleware())
	posts.Post("/", post.CreatePost)
	posts.Get("/", post.ListPosts)
	posts.Get("/:id", post.GetPost)
	posts.Delete("/:id", post.RemovePost)

	upload := handlers.NewUploadHandler(s.Media)
	api.Post("/upload", authMiddleware.AuthMiddleware(), upload.Upload)

	cron := handlers.NewCronHandler(s.Sweeper)
	cronAuth := middleware.BearerSecret(cfg.CronSecret, cfg.IsProduction())
	api.Get("/cron/publish", cronAuth, cron.Publish)
	api.Post("/cron/publish", cronAuth, cron.Publish)

	webhook := handlers.NewWebhookHandler(s.Reconciler)
	api.Post("/webhook/n8n", middleware.HeaderSecret(webhookSecretHeader, cfg.WebhookSecret), webhook.PublishOutcome)
}

// corsConfig allows credentials only for an explicit frontend origin.
func corsConfig(frontendURL string) cors.Config {
	c := cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       3600,
	}
	if frontendURL != "" && frontendURL != "*" {
		c.AllowOrigins = frontendURL
		c.AllowCredentials = true
	}
	return c
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	slog.Error("unhandled error", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

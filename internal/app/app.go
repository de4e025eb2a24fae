// Package app assembles the store and dispatcher shared by the server and the
// operator CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	config "github.com/maheshrc27/social-scheduler/configs"
	"github.com/maheshrc27/social-scheduler/internal/mq"
	"github.com/maheshrc27/social-scheduler/internal/repository"
	"github.com/maheshrc27/social-scheduler/internal/service"
)

// OpenStore opens the configured database once, creates the schema if needed
// and returns the handle with the post repository over it.
func OpenStore(ctx context.Context, cfg *config.Config) (*sql.DB, repository.PostRepository, error) {
	db, err := repository.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN())
	if err != nil {
		return nil, nil, err
	}

	if err := repository.Migrate(ctx, db, cfg.DatabaseDriver); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	return db, repository.NewPostRepository(db, cfg.DatabaseDriver), nil
}

// NewDispatcher builds the configured transport. The returned close function
// releases broker connections and is never nil.
func NewDispatcher(ctx context.Context, cfg *config.Config) (service.Dispatcher, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Dispatch.Transport {
	case config.TransportWebhook, "":
		if cfg.Dispatch.WebhookURL == "" {
			slog.Warn("DISPATCH_WEBHOOK_URL is not set, every due post will fail to dispatch")
		}
		return service.NewWebhookDispatcher(cfg.Dispatch.WebhookURL, cfg.Dispatch.Secret, &http.Client{}), noop, nil

	case config.TransportAMQP:
		logger := slog.Default().With("component", "amqp")
		conn, err := mq.NewConnection(cfg.Dispatch.AMQPURL, logger)
		if err != nil {
			return nil, noop, err
		}

		publisher := mq.NewPublisher(conn, cfg.Dispatch.Exchange, cfg.Dispatch.RoutingKey, logger)
		if err := publisher.SetupTopology(ctx); err != nil {
			conn.Close()
			return nil, noop, fmt.Errorf("setup amqp topology: %w", err)
		}
		return publisher, conn.Close, nil

	default:
		return nil, noop, fmt.Errorf("unsupported dispatch transport %q", cfg.Dispatch.Transport)
	}
}

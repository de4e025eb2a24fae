package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/social-scheduler/internal/models"
	"github.com/maheshrc27/social-scheduler/internal/transfer"
	amqp "github.com/rabbitmq/amqp091-go"
)

type MessageType string

const MessageTypePostDue MessageType = "post.due"

// DueQueue is bound to the publish exchange with the configured routing key.
const DueQueue = "posts.due"

type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewDueMessage(post *models.Post, now time.Time) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypePostDue,
		Payload:   transfer.NewDispatchPayload(post),
		Timestamp: now.UTC(),
	}
}

// Publisher hands claimed posts to the broker. A post counts as dispatched
// once the broker confirms the message.
type Publisher struct {
	conn       *Connection
	exchange   string
	routingKey string
	logger     *slog.Logger
}

func NewPublisher(conn *Connection, exchange, routingKey string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, exchange: exchange, routingKey: routingKey, logger: logger}
}

// SetupTopology declares the durable exchange and due queue the publisher targets.
func (p *Publisher) SetupTopology(ctx context.Context) error {
	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.ExchangeDeclare(p.exchange, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
		}
		if _, err := ch.QueueDeclare(DueQueue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", DueQueue, err)
		}
		if err := ch.QueueBind(DueQueue, p.routingKey, p.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", DueQueue, p.exchange, err)
		}
		return nil
	})
}

func (p *Publisher) Dispatch(ctx context.Context, post *models.Post) error {
	return p.Publish(ctx, NewDueMessage(post, time.Now()))
}

func (p *Publisher) Publish(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, p.routingKey, false, false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", p.exchange, p.routingKey, err)
		}

		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("wait for broker confirm: %w", err)
		}
		if !acked {
			return fmt.Errorf("broker rejected message %s", msg.ID)
		}

		p.logger.Debug("published message",
			"exchange", p.exchange,
			"routing_key", p.routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// Package mq publishes due posts to RabbitMQ for a publishing workflow that
// consumes from a queue instead of exposing a webhook.
package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection keeps one AMQP connection and a confirm-mode channel open,
// reconnecting when the broker drops it.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	closed   bool
	closedCh chan struct{}
}

func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	if url == "" {
		return nil, errors.New("amqp url is not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Connection{
		url:      url,
		logger:   logger,
		closedCh: make(chan struct{}),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}

	go c.watchConnection()
	return c, nil
}

func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := openConfirmChannel(conn)
	if err != nil {
		conn.Close()
		return err
	}

	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}
	c.conn = conn
	c.channel = ch
	c.logger.Info("connected to RabbitMQ")
	return nil
}

func openConfirmChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	return ch, nil
}

// watchConnection restores the channel after a channel-level exception and
// the whole connection after the broker drops it.
func (c *Connection) watchConnection() {
	for {
		c.mu.RLock()
		if c.closed {
			c.mu.RUnlock()
			return
		}
		conn, ch := c.conn, c.channel
		c.mu.RUnlock()

		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chanClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.closedCh:
			return
		case err := <-connClosed:
			if err != nil {
				c.logger.Warn("amqp connection closed", "error", err)
			}
			c.reconnect()
		case err := <-chanClosed:
			if err != nil {
				c.logger.Warn("amqp channel closed", "error", err)
			}
			if conn.IsClosed() || !c.reopenChannel() {
				c.reconnect()
			}
		}
	}
}

// reopenChannel replaces a closed channel on the live connection. It reports
// false when the connection cannot provide one.
func (c *Connection) reopenChannel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	ch, err := openConfirmChannel(c.conn)
	if err != nil {
		c.logger.Warn("amqp channel reopen failed", "error", err)
		return false
	}
	c.channel = ch
	c.logger.Info("reopened amqp channel")
	return true
}

func (c *Connection) reconnect() {
	delay := time.Second

	for {
		select {
		case <-c.closedCh:
			return
		case <-time.After(delay):
		}

		if err := c.connect(); err != nil {
			c.logger.Warn("amqp reconnect failed", "error", err, "retry_in", delay)
			delay = min(delay*2, 30*time.Second)
			continue
		}
		c.logger.Info("reconnected to RabbitMQ")
		return
	}
}

// WithChannel runs fn with the current channel.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	c.mu.RLock()
	ch := c.channel
	closed := c.closed
	c.mu.RUnlock()

	if closed || ch == nil || ch.IsClosed() {
		return errors.New("no amqp channel available")
	}
	return fn(ch)
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closedCh)

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Package rabbitmq owns the broker connection and runs the per-queue
// dispatch loop every service shares.
package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/baechuer/media-pirate/internal/metrics"
)

// Container owns the AMQP connection and channel for one service process.
// Publishing reconnects transparently when the channel has gone away.
type Container struct {
	url     string
	durable bool
	log     zerolog.Logger
	met     *metrics.Metrics

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewContainer(url string, durable bool, met *metrics.Metrics, log zerolog.Logger) *Container {
	return &Container{
		url:     url,
		durable: durable,
		met:     met,
		log:     log.With().Str("component", "broker").Logger(),
	}
}

// Connect dials the broker, retrying for a short while so services survive a
// broker that is still coming up.
func (c *Container) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Container) connectLocked() error {
	var conn *amqp.Connection
	var err error
	for i := 0; i < 6; i++ {
		conn, err = amqp.Dial(c.url)
		if err == nil {
			break
		}
		c.log.Warn().Err(err).Msgf("failed to connect to RabbitMQ, retrying in 5s... (%d/6)", i+1)
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after retries: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	c.conn = conn
	c.ch = ch
	c.log.Info().Msg("connected to RabbitMQ")
	return nil
}

// DeclareQueue declares a queue with the configured durability.
func (c *Container) DeclareQueue(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		if err := c.connectLocked(); err != nil {
			return err
		}
	}
	_, err := c.ch.QueueDeclare(
		name,
		c.durable, // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}

// Publish sends a body to the default exchange under the routing key (the
// queue name). A closed connection or channel is reopened first.
func (c *Container) Publish(ctx context.Context, routingKey string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() || c.ch == nil || c.ch.IsClosed() {
		c.log.Warn().Msg("connection or channel closed, reconnecting...")
		if err := c.connectLocked(); err != nil {
			return err
		}
	}

	deliveryMode := amqp.Transient
	if c.durable {
		deliveryMode = amqp.Persistent
	}

	err := c.ch.PublishWithContext(ctx,
		"",         // default exchange
		routingKey, // queue name
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: deliveryMode,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", routingKey, err)
	}
	if c.met != nil {
		c.met.EventsPublished.WithLabelValues(routingKey).Inc()
	}
	c.log.Debug().Str("routing_key", routingKey).Msg("published message")
	return nil
}

func (c *Container) channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		if err := c.connectLocked(); err != nil {
			return nil, err
		}
	}
	return c.ch, nil
}

func (c *Container) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.log.Info().Msg("closed RabbitMQ connection")
}

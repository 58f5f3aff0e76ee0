package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/core/router"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
)

// outcome is what handling one delivery decided about its fate.
type outcome int

const (
	outcomeAck outcome = iota
	outcomeDropMalformed
	outcomeDropNoRoute
	outcomeRequeue
	outcomeFatal
)

func (o outcome) label() string {
	switch o {
	case outcomeAck:
		return "ok"
	case outcomeDropMalformed:
		return "malformed"
	case outcomeDropNoRoute:
		return "no_route"
	case outcomeRequeue:
		return "requeue"
	default:
		return "fatal"
	}
}

// Consumer runs the shared dispatch loop against one input queue.
// Deliveries are processed one at a time, so a service never overlaps
// handlers against the same queue.
type Consumer[C any] struct {
	container *Container
	queue     string
	router    *router.Router[C]
	deps      C
	prefetch  int
	tag       string
	met       MetricsRecorder
	log       zerolog.Logger

	// fatalf aborts the process. Overridable in tests.
	fatalf func(err error, msg string)
}

// MetricsRecorder is the slice of the service metrics the loop reports to.
type MetricsRecorder interface {
	Consumed(queue, outcome string)
	DispatchFailed(eventType string)
}

func NewConsumer[C any](container *Container, queue string, rt *router.Router[C], deps C, prefetch int, tag string, log zerolog.Logger) *Consumer[C] {
	c := &Consumer[C]{
		container: container,
		queue:     queue,
		router:    rt,
		deps:      deps,
		prefetch:  prefetch,
		tag:       tag,
		log:       log.With().Str("component", "consumer").Str("queue", queue).Logger(),
	}
	c.fatalf = func(err error, msg string) {
		c.log.Fatal().Err(err).Msg(msg)
	}
	return c
}

// WithMetrics attaches the service metrics to the loop.
func (c *Consumer[C]) WithMetrics(m MetricsRecorder) *Consumer[C] {
	c.met = m
	return c
}

// Run declares the queue and consumes it until ctx is done or the delivery
// channel closes.
func (c *Consumer[C]) Run(ctx context.Context) error {
	if err := c.container.DeclareQueue(c.queue); err != nil {
		return err
	}

	ch, err := c.container.channel()
	if err != nil {
		return err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue,
		c.tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", c.queue, err)
	}

	c.log.Info().Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for %s", c.queue)
			}
			c.settle(ctx, d)
		}
	}
}

func (c *Consumer[C]) settle(ctx context.Context, d amqp.Delivery) {
	out := c.handle(ctx, d.Body)
	if c.met != nil {
		c.met.Consumed(c.queue, out.label())
	}
	switch out {
	case outcomeRequeue:
		_ = d.Nack(false, true)
	default:
		// Failures are logged; the message is acked after dispatch returns
		// regardless of handler result.
		_ = d.Ack(false)
	}
}

// handle runs the spec'd per-delivery steps and decides the delivery's fate.
func (c *Consumer[C]) handle(ctx context.Context, body []byte) outcome {
	var probe struct {
		CorrelationID string `json:"correlation_id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		c.log.Error().Err(err).Msg("invalid JSON in message; dropping")
		return outcomeDropMalformed
	}

	// A missing correlation id is a programming error upstream, not a bad
	// message: abort so it is noticed.
	if probe.CorrelationID == "" {
		c.fatalf(errors.New("delivery without correlation_id"), "missing correlation id; aborting")
		return outcomeFatal
	}

	dctx := correlation.WithID(ctx, probe.CorrelationID)
	log := correlation.Logger(dctx, c.log)

	env, err := event.FromWire(body)
	if err != nil {
		log.Error().Err(err).Msg("malformed envelope; dropping")
		return outcomeDropMalformed
	}

	log.Info().Str("type", env.Type).Int("version", env.Version).Str("timestamp", env.Timestamp).Msg("event received")

	if c.router.Lookup(env) == nil {
		log.Warn().Str("type", env.Type).Int("version", env.Version).Msg("no route for event; dropping")
		return outcomeDropNoRoute
	}

	result, err := c.router.Dispatch(dctx, c.deps, env)
	if err != nil {
		if errors.Is(err, router.ErrContextCorruption) {
			c.fatalf(err, "correlation context corrupted; aborting")
			return outcomeFatal
		}
		if ctx.Err() != nil {
			// Cancelled mid-dispatch: hand the message to another consumer.
			log.Warn().Err(err).Msg("dispatch interrupted by shutdown; requeueing")
			return outcomeRequeue
		}
		if c.met != nil {
			c.met.DispatchFailed(env.Type)
		}
		log.Error().Err(err).Str("type", env.Type).Msg("dispatch failed")
		return outcomeAck
	}

	log.Debug().Interface("handler_result", result.HandlerResult).Msg("dispatch complete")
	return outcomeAck
}

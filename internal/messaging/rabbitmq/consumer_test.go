package rabbitmq

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/core/router"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
)

type loopDeps struct {
	handled []string
}

func newLoopConsumer(t *testing.T, rt *router.Router[*loopDeps], deps *loopDeps) (*Consumer[*loopDeps], *bool) {
	t.Helper()
	c := NewConsumer(nil, "test_queue", rt, deps, 1, "t", zerolog.Nop())
	fatal := false
	c.fatalf = func(err error, msg string) { fatal = true }
	return c, &fatal
}

func wire(t *testing.T, env *event.Envelope) []byte {
	t.Helper()
	body, err := env.ToWire()
	require.NoError(t, err)
	return body
}

func TestHandleInvalidJSON(t *testing.T) {
	rt := router.New[*loopDeps](zerolog.Nop())
	c, fatal := newLoopConsumer(t, rt, &loopDeps{})

	out := c.handle(context.Background(), []byte(`{{{not json`))
	assert.Equal(t, outcomeDropMalformed, out)
	assert.False(t, *fatal)
}

func TestHandleMissingCorrelationIDIsFatal(t *testing.T) {
	rt := router.New[*loopDeps](zerolog.Nop())
	c, fatal := newLoopConsumer(t, rt, &loopDeps{})

	out := c.handle(context.Background(), []byte(`{"type":"events.telegram.raw","payload":{}}`))
	assert.Equal(t, outcomeFatal, out)
	assert.True(t, *fatal)
}

func TestHandleMalformedEnvelope(t *testing.T) {
	rt := router.New[*loopDeps](zerolog.Nop())
	c, fatal := newLoopConsumer(t, rt, &loopDeps{})

	// Valid correlation id but no type: passes the probe, fails the parse.
	out := c.handle(context.Background(), []byte(`{"correlation_id":"abc","payload":{}}`))
	assert.Equal(t, outcomeDropMalformed, out)
	assert.False(t, *fatal)
}

func TestHandleNoRoute(t *testing.T) {
	rt := router.New[*loopDeps](zerolog.Nop())
	c, fatal := newLoopConsumer(t, rt, &loopDeps{})

	out := c.handle(context.Background(), wire(t, event.New("events.unknown", nil)))
	assert.Equal(t, outcomeDropNoRoute, out)
	assert.False(t, *fatal)
}

func TestHandleDispatchesWithCorrelation(t *testing.T) {
	rt := router.New[*loopDeps](zerolog.Nop())
	deps := &loopDeps{}
	rt.Route(event.TypeTelegramRaw, 1, router.RouteOptions{}, func(ctx context.Context, d *loopDeps, env *event.Envelope, _ *router.Scratch) (any, error) {
		d.handled = append(d.handled, correlation.ID(ctx))
		return "ok", nil
	})
	c, fatal := newLoopConsumer(t, rt, deps)

	env := event.New(event.TypeTelegramRaw, map[string]any{"text": "hi"})
	out := c.handle(context.Background(), wire(t, env))

	assert.Equal(t, outcomeAck, out)
	assert.False(t, *fatal)
	require.Len(t, deps.handled, 1)
	assert.Equal(t, env.CorrelationID, deps.handled[0], "dispatch runs under the envelope's correlation id")
}

func TestHandlerErrorStillAcks(t *testing.T) {
	rt := router.New[*loopDeps](zerolog.Nop())
	rt.Route(event.TypeTelegramRaw, 1, router.RouteOptions{}, func(context.Context, *loopDeps, *event.Envelope, *router.Scratch) (any, error) {
		return nil, errors.New("boom")
	})
	c, fatal := newLoopConsumer(t, rt, &loopDeps{})

	out := c.handle(context.Background(), wire(t, event.New(event.TypeTelegramRaw, nil)))
	assert.Equal(t, outcomeAck, out, "failed dispatches are logged and acked")
	assert.False(t, *fatal)
}

func TestContextCorruptionIsFatal(t *testing.T) {
	rt := router.New[*loopDeps](zerolog.Nop())
	require.NoError(t, router.RegisterGuards(rt))
	// A handler that swaps the correlation id mid-dispatch trips the
	// confirm guard.
	rt.Route(event.TypeTelegramRaw, 1, router.RouteOptions{}, func(ctx context.Context, _ *loopDeps, env *event.Envelope, sc *router.Scratch) (any, error) {
		sc.Set(router.KeyCorrelationSnapshot, "foreign")
		return "ok", nil
	})
	c, fatal := newLoopConsumer(t, rt, &loopDeps{})

	out := c.handle(context.Background(), wire(t, event.New(event.TypeTelegramRaw, nil)))
	assert.Equal(t, outcomeFatal, out)
	assert.True(t, *fatal)
}

func TestGuardsPassOnCleanDelivery(t *testing.T) {
	rt := router.New[*loopDeps](zerolog.Nop())
	require.NoError(t, router.RegisterGuards(rt))
	rt.Route(event.TypeTelegramRaw, 1, router.RouteOptions{}, func(context.Context, *loopDeps, *event.Envelope, *router.Scratch) (any, error) {
		return "ok", nil
	})
	c, fatal := newLoopConsumer(t, rt, &loopDeps{})

	out := c.handle(context.Background(), wire(t, event.New(event.TypeTelegramRaw, nil)))
	assert.Equal(t, outcomeAck, out)
	assert.False(t, *fatal)
}

func TestCancelledContextRequeues(t *testing.T) {
	rt := router.New[*loopDeps](zerolog.Nop())
	rt.Route(event.TypeTelegramRaw, 1, router.RouteOptions{}, func(ctx context.Context, _ *loopDeps, _ *event.Envelope, _ *router.Scratch) (any, error) {
		return nil, ctx.Err()
	})
	c, fatal := newLoopConsumer(t, rt, &loopDeps{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := c.handle(ctx, wire(t, event.New(event.TypeTelegramRaw, nil)))
	assert.Equal(t, outcomeRequeue, out)
	assert.False(t, *fatal)
}

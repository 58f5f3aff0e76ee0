package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/media-pirate/internal/cache"
	"github.com/baechuer/media-pirate/internal/chat"
	"github.com/baechuer/media-pirate/internal/contracts/event"
)

func ingressFor(h *gatewayHarness) *Ingress {
	return &Ingress{Deps: h.deps}
}

func TestIngressPublishesRawEvent(t *testing.T) {
	h := newGatewayHarness(t)
	i := ingressFor(h)

	err := i.handle(context.Background(), chat.Message{
		ID:         10,
		ChatID:     -20,
		FromUserID: testAdminID,
		Text:       ".vdl https://example.com/v",
	})
	require.NoError(t, err)

	raws := h.bus.byType(event.TypeTelegramRaw)
	require.Len(t, raws, 2, "admin messages land on both queues")
	assert.Equal(t, "telegram_events", raws[0].Queue)
	assert.Equal(t, "gateway_events", raws[1].Queue)
	assert.Equal(t, raws[0].Env.CorrelationID, raws[1].Env.CorrelationID)
	assert.False(t, raws[0].Env.IsRateLimited)

	parts, ok := raws[0].Env.Payload["filtered_parts"].([]any)
	require.True(t, ok)
	assert.Equal(t, ".vdl", parts[0])

	// The ingress stamp backs the delivery's elapsed-time caption.
	corrKey := cache.CorrelationKey(raws[0].Env.CorrelationID)
	assert.True(t, h.redis.Exists(corrKey))
	assert.NotEmpty(t, h.redis.HGet(corrKey, cache.StartTimeField))
}

func TestIngressDropsUnauthorized(t *testing.T) {
	h := newGatewayHarness(t)
	i := ingressFor(h)

	err := i.handle(context.Background(), chat.Message{
		ID:         10,
		ChatID:     -20,
		FromUserID: 2000,
		Text:       "hi",
	})
	require.NoError(t, err)
	assert.Empty(t, h.bus.events)
	assert.Empty(t, h.redis.Keys(), "no chain state for dropped messages")
}

func TestIngressGracedChatPublishesOnce(t *testing.T) {
	h := newGatewayHarness(t)
	require.NoError(t, h.deps.Auth.Grace(context.Background(), -20))
	i := ingressFor(h)

	err := i.handle(context.Background(), chat.Message{
		ID:         10,
		ChatID:     -20,
		FromUserID: 2000,
		Text:       ".adl https://example.com/a",
	})
	require.NoError(t, err)

	raws := h.bus.byType(event.TypeTelegramRaw)
	require.Len(t, raws, 1, "non-admin messages go to the worker queue only")
	assert.Equal(t, "telegram_events", raws[0].Queue)
}

func TestIngressMarksRateLimited(t *testing.T) {
	h := newGatewayHarness(t)
	ctx := context.Background()
	for j := 0; j < 5; j++ {
		_, err := h.deps.Limiter.Increment(ctx, testAdminID)
		require.NoError(t, err)
	}
	i := ingressFor(h)

	err := i.handle(ctx, chat.Message{ID: 10, ChatID: -20, FromUserID: testAdminID, Text: ".vdl x"})
	require.NoError(t, err)

	raws := h.bus.byType(event.TypeTelegramRaw)
	require.Len(t, raws, 2)
	assert.True(t, raws[0].Env.IsRateLimited, "advisory flag set; the worker re-checks anyway")
}

func TestIngressRunDrainsUntilContextDone(t *testing.T) {
	h := newGatewayHarness(t)
	updates := make(chan chat.Message, 1)
	updates <- chat.Message{ID: 10, ChatID: -20, FromUserID: testAdminID, Text: "hello"}
	close(updates)

	i := &Ingress{Deps: h.deps, Source: chanSource(updates)}
	require.NoError(t, i.Run(context.Background()))
	require.NotEmpty(t, h.bus.byType(event.TypeTelegramRaw))
}

type chanSource <-chan chat.Message

func (s chanSource) Updates(context.Context) (<-chan chat.Message, error) {
	return s, nil
}

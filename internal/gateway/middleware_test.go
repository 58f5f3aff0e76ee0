package gateway

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/media-pirate/internal/cache"
	"github.com/baechuer/media-pirate/internal/contracts/event"
)

func replyEvent() *event.Envelope {
	return event.New(event.TypeGatewayReply, map[string]any{
		"chat_id": int64(-20),
		"text":    "hi",
	})
}

func TestCleanupCounterIncrementsPerDispatch(t *testing.T) {
	h := newGatewayHarness(t)

	for i := 1; i <= 3; i++ {
		_, err := h.dispatch(t, replyEvent())
		require.NoError(t, err)
		val, err := h.redis.Get(cache.CleanupCounterKey)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(i), val)
	}
	assert.Equal(t, cache.CleanupCounterTTL, h.redis.TTL(cache.CleanupCounterKey),
		"TTL attached on the first count")
	assert.Empty(t, h.bus.byType(event.TypeDownloadsCleanup))
}

func TestCleanupCounterFiresAtThreshold(t *testing.T) {
	h := newGatewayHarness(t)
	require.NoError(t, h.redis.Set(cache.CleanupCounterKey, "99"))

	_, err := h.dispatch(t, replyEvent())
	require.NoError(t, err)

	assert.False(t, h.redis.Exists(cache.CleanupCounterKey), "counter reset")

	sweeps := h.bus.byType(event.TypeDownloadsCleanup)
	require.Len(t, sweeps, 1)
	assert.Equal(t, "gateway_events", sweeps[0].Queue)
	assert.Equal(t, float64(100), sweeps[0].Env.Payload["max_delete"])
}

func TestCorrelationCleanupRequiresFlag(t *testing.T) {
	h := newGatewayHarness(t)
	env := replyEvent()
	corrKey := cache.CorrelationKey(env.CorrelationID)
	h.redis.HSet(corrKey, cache.StartTimeField, "1700000000.000000")

	// A plain reply never marks its chain finished.
	_, err := h.dispatch(t, env)
	require.NoError(t, err)
	assert.True(t, h.redis.Exists(corrKey), "chain hash survives until a delivery finishes it")
}

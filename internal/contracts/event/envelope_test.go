package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromWireRoundTrip(t *testing.T) {
	env := New(TypeTelegramRaw, map[string]any{"text": ".vdl https://example.com/v"})

	body, err := env.ToWire()
	require.NoError(t, err)

	got, err := FromWire(body)
	require.NoError(t, err)
	assert.Equal(t, env.Type, got.Type)
	assert.Equal(t, env.Version, got.Version)
	assert.Equal(t, env.CorrelationID, got.CorrelationID)
	assert.Equal(t, env.Timestamp, got.Timestamp)
	assert.Equal(t, env.IsRateLimited, got.IsRateLimited)
	assert.Equal(t, ".vdl https://example.com/v", got.Payload["text"])
}

func TestFromWireDefaults(t *testing.T) {
	body := []byte(`{"type":"events.telegram.raw","correlation_id":"abc","timestamp":"2026-01-01T00:00:00Z"}`)

	got, err := FromWire(body)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version, "missing version defaults to 1")
	assert.False(t, got.IsRateLimited, "missing is_rate_limited defaults to false")
	assert.NotNil(t, got.Payload, "missing payload becomes an empty map")
}

func TestFromWireMalformed(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"json array", `[1,2,3]`},
		{"empty type", `{"type":"","correlation_id":"abc"}`},
		{"missing type", `{"correlation_id":"abc"}`},
		{"empty correlation id", `{"type":"events.telegram.raw","correlation_id":""}`},
		{"zero version", `{"type":"events.telegram.raw","correlation_id":"abc","version":0}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromWire([]byte(tc.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestNewAssignsFreshCorrelationIDs(t *testing.T) {
	a := New(TypeTelegramRaw, nil)
	b := New(TypeTelegramRaw, nil)
	assert.NotEmpty(t, a.CorrelationID)
	assert.NotEqual(t, a.CorrelationID, b.CorrelationID)
	assert.Equal(t, 1, a.Version)
}

func TestDerivePreservesCorrelationID(t *testing.T) {
	parent := New(TypeTelegramRaw, map[string]any{"chat_id": int64(7)})
	child := parent.Derive(TypeVideoDownload, map[string]any{"url": "https://example.com"})

	assert.Equal(t, parent.CorrelationID, child.CorrelationID)
	assert.Equal(t, TypeVideoDownload, child.Type)
	assert.Equal(t, 1, child.Version)
	assert.Equal(t, "https://example.com", child.Payload["url"])
}

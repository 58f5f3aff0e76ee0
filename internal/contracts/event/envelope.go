// Package event defines the canonical envelope carried on every queue.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event catalog. Handlers register against (type, version) exactly.
const (
	TypeTelegramRaw      = "events.telegram.raw"
	TypeVideoReady       = "events.dl.video.ready"
	TypeAudioReady       = "events.dl.audio.ready"
	TypeVideoDownload    = "commands.media.video_download"
	TypeAudioDownload    = "commands.media.audio_download"
	TypeGatewayReply     = "commands.gateway.reply"
	TypeMessageUpdate    = "commands.gateway.message-update"
	TypeDownloadsCleanup = "commands.gateway.downloads-cleanup"
	TypeGatewayGrace     = "commands.gateway.grace"
	TypeGatewaySmite     = "commands.gateway.smite"
)

// ErrMalformed marks envelopes that cannot be parsed or fail the wire
// invariants (non-object body, empty type, empty correlation id).
var ErrMalformed = errors.New("malformed envelope")

// Envelope is immutable in transit. The payload is an opaque JSON object;
// in-process control flags live in the dispatch scratch, never here, so the
// envelope re-serializes unchanged when forwarded between services.
type Envelope struct {
	Type          string         `json:"type"`
	Version       int            `json:"version"`
	CorrelationID string         `json:"correlation_id"`
	Timestamp     string         `json:"timestamp"`
	Payload       map[string]any `json:"payload"`
	IsRateLimited bool           `json:"is_rate_limited"`
}

// New builds a fresh envelope: version 1, new correlation id, now-UTC.
func New(eventType string, payload map[string]any) *Envelope {
	return &Envelope{
		Type:          eventType,
		Version:       1,
		CorrelationID: uuid.NewString(),
		Timestamp:     Now(),
		Payload:       payload,
	}
}

// Derive builds a child event in the same causal chain: the correlation id
// is preserved, everything else is fresh.
func (e *Envelope) Derive(eventType string, payload map[string]any) *Envelope {
	return &Envelope{
		Type:          eventType,
		Version:       1,
		CorrelationID: e.CorrelationID,
		Timestamp:     Now(),
		Payload:       payload,
	}
}

// Now returns the envelope timestamp format: RFC3339 UTC.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// FromWire parses a JSON envelope. Missing version defaults to 1, missing
// is_rate_limited to false. Anything violating the wire invariants is
// reported as ErrMalformed.
func FromWire(body []byte) (*Envelope, error) {
	var raw struct {
		Type          string         `json:"type"`
		Version       *int           `json:"version"`
		CorrelationID string         `json:"correlation_id"`
		Timestamp     string         `json:"timestamp"`
		Payload       map[string]any `json:"payload"`
		IsRateLimited bool           `json:"is_rate_limited"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Type == "" {
		return nil, fmt.Errorf("%w: empty type", ErrMalformed)
	}
	if raw.CorrelationID == "" {
		return nil, fmt.Errorf("%w: empty correlation_id", ErrMalformed)
	}
	version := 1
	if raw.Version != nil {
		version = *raw.Version
	}
	if version < 1 {
		return nil, fmt.Errorf("%w: version %d", ErrMalformed, version)
	}
	payload := raw.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return &Envelope{
		Type:          raw.Type,
		Version:       version,
		CorrelationID: raw.CorrelationID,
		Timestamp:     raw.Timestamp,
		Payload:       payload,
		IsRateLimited: raw.IsRateLimited,
	}, nil
}

// ToWire returns the canonical JSON encoding.
func (e *Envelope) ToWire() ([]byte, error) {
	return json.Marshal(e)
}

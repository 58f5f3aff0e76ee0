package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/media-pirate/internal/auth"
	"github.com/baechuer/media-pirate/internal/chat"
	"github.com/baechuer/media-pirate/internal/config"
	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/core/router"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
	"github.com/baechuer/media-pirate/internal/ratelimit"
)

const testAdminID int64 = 1000

type published struct {
	Queue string
	Env   *event.Envelope
}

type fakeBus struct {
	mu     sync.Mutex
	events []published
}

func (b *fakeBus) Publish(_ context.Context, routingKey string, body []byte) error {
	env, err := event.FromWire(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{Queue: routingKey, Env: env})
	return nil
}

func (b *fakeBus) byType(eventType string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []published
	for _, p := range b.events {
		if p.Env.Type == eventType {
			out = append(out, p)
		}
	}
	return out
}

type chatCall struct {
	Op        string
	ChatID    int64
	MessageID int64
	Text      string
	Media     chat.MediaRef
	Emoji     string
}

type fakeChat struct {
	mu     sync.Mutex
	calls  []chatCall
	nextID int64
	fileID string
	// sendErr fails every send; fileIDErr fails only sends by platform
	// file id, exercising the disk fallback.
	sendErr   error
	fileIDErr error
}

func (c *fakeChat) record(call chatCall) *chat.SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.calls = append(c.calls, call)
	return &chat.SentMessage{ID: c.nextID, ChatID: call.ChatID, FileID: c.fileID}
}

func (c *fakeChat) byOp(op string) []chatCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []chatCall
	for _, call := range c.calls {
		if call.Op == op {
			out = append(out, call)
		}
	}
	return out
}

func (c *fakeChat) SendMessage(_ context.Context, chatID int64, text string, replyTo int64) (*chat.SentMessage, error) {
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	return c.record(chatCall{Op: "message", ChatID: chatID, Text: text}), nil
}

func (c *fakeChat) SendVideo(_ context.Context, chatID int64, media chat.MediaRef, caption string, replyTo int64) (*chat.SentMessage, error) {
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	if media.FileID != "" && c.fileIDErr != nil {
		return nil, c.fileIDErr
	}
	return c.record(chatCall{Op: "video", ChatID: chatID, Text: caption, Media: media}), nil
}

func (c *fakeChat) SendAudio(_ context.Context, chatID int64, media chat.MediaRef, caption string, replyTo int64) (*chat.SentMessage, error) {
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	if media.FileID != "" && c.fileIDErr != nil {
		return nil, c.fileIDErr
	}
	return c.record(chatCall{Op: "audio", ChatID: chatID, Text: caption, Media: media}), nil
}

func (c *fakeChat) EditCaption(_ context.Context, chatID, messageID int64, caption string) error {
	c.record(chatCall{Op: "edit", ChatID: chatID, MessageID: messageID, Text: caption})
	return nil
}

func (c *fakeChat) DeleteMessage(_ context.Context, chatID, messageID int64) error {
	c.record(chatCall{Op: "delete", ChatID: chatID, MessageID: messageID})
	return nil
}

func (c *fakeChat) React(_ context.Context, chatID, messageID int64, emoji string) error {
	c.record(chatCall{Op: "react", ChatID: chatID, MessageID: messageID, Emoji: emoji})
	return nil
}

type gatewayHarness struct {
	deps  *Deps
	bus   *fakeBus
	chat  *fakeChat
	redis *miniredis.Miniredis
	rdb   *redis.Client
}

func newGatewayHarness(t *testing.T) *gatewayHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	bus := &fakeBus{}
	fc := &fakeChat{fileID: "file-abc"}

	deps := &Deps{
		Cfg: &config.Config{
			TelegramQueue: "telegram_events",
			GatewayQueue:  "gateway_events",
			DownloadsDir:  t.TempDir(),
			AdminUserID:   testAdminID,
		},
		Log:     zerolog.Nop(),
		Redis:   client,
		Bus:     bus,
		Auth:    auth.NewAuthenticator(client, testAdminID, 7*24*time.Hour),
		Limiter: ratelimit.NewFixedWindow(client, time.Minute, 5),
		Chat:    fc,
		Sleep:   func(context.Context, time.Duration) {},
	}
	return &gatewayHarness{deps: deps, bus: bus, chat: fc, redis: mr, rdb: client}
}

func (h *gatewayHarness) dispatch(t *testing.T, env *event.Envelope) (*router.Result, error) {
	t.Helper()
	rt := router.New[*Deps](h.deps.Log)
	require.NoError(t, Routes(rt))
	ctx := correlation.WithID(context.Background(), env.CorrelationID)
	return rt.Dispatch(ctx, h.deps, env)
}

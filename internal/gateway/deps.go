// Package gateway bridges the chat platform to the event bus: it ingests
// raw chat messages on one side and executes gateway commands (replies,
// caption edits, media delivery from staged artifacts) on the other.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/baechuer/media-pirate/internal/auth"
	"github.com/baechuer/media-pirate/internal/cache"
	"github.com/baechuer/media-pirate/internal/chat"
	"github.com/baechuer/media-pirate/internal/config"
	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
	"github.com/baechuer/media-pirate/internal/ratelimit"
)

// Bus is the outbound slice of the broker container.
type Bus interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Deps is the dependency aggregate passed to every gateway handler and
// middleware.
type Deps struct {
	Cfg     *config.Config
	Log     zerolog.Logger
	Redis   *redis.Client
	Bus     Bus
	Auth    *auth.Authenticator
	Limiter *ratelimit.FixedWindow
	Chat    chat.Client
	HTTP    *http.Client

	// Sleep is the coalescing delay; tests swap it for an instant one.
	Sleep func(ctx context.Context, d time.Duration)
}

func (d *Deps) publish(ctx context.Context, queue string, env *event.Envelope) error {
	body, err := env.ToWire()
	if err != nil {
		return err
	}
	if err := d.Bus.Publish(ctx, queue, body); err != nil {
		return err
	}
	log := correlation.Logger(ctx, d.Log)
	log.Info().
		Str("queue", queue).
		Str("type", env.Type).
		Msg("event published")
	return nil
}

func (d *Deps) pause(ctx context.Context, dur time.Duration) {
	if d.Sleep != nil {
		d.Sleep(ctx, dur)
		return
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// optimisticReplyCleanup deletes the pending "processing" chat message for
// the current chain, if one was recorded. Safe to call when none exists.
func (d *Deps) optimisticReplyCleanup(ctx context.Context) error {
	key := cache.PersistenceKey(correlation.ID(ctx), "optimistic_reply")
	vals, err := d.Redis.HMGet(ctx, key, "message_id", "chat_id").Result()
	if err != nil && err != redis.Nil {
		return err
	}

	var messageID, chatID int64
	if len(vals) == 2 {
		messageID = chat.AsInt64(vals[0])
		chatID = chat.AsInt64(vals[1])
	}

	log := correlation.Logger(ctx, d.Log)
	if messageID == 0 || chatID == 0 {
		log.Debug().Str("key", key).Msg("no optimistic reply recorded")
		return nil
	}

	if err := d.Chat.DeleteMessage(ctx, chatID, messageID); err != nil {
		return err
	}
	if err := d.Redis.HDel(ctx, key, "message_id", "chat_id").Err(); err != nil {
		return err
	}
	log.Info().Int64("message_id", messageID).Int64("chat_id", chatID).Msg("optimistic reply cleaned up")
	return nil
}

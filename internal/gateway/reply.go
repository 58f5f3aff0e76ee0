package gateway

import (
	"context"

	"github.com/baechuer/media-pirate/internal/cache"
	"github.com/baechuer/media-pirate/internal/chat"
	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/core/router"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
)

// HandleReply sends a text message into a chat. When the payload names a
// persistence slot, the sent message's coordinates are recorded under the
// chain so a later event can edit or delete it.
func HandleReply(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch) (any, error) {
	log := correlation.Logger(ctx, d.Log)

	chatID := chat.AsInt64(env.Payload["chat_id"])
	text := chat.AsString(env.Payload["text"])
	replyTo := chat.AsInt64(env.Payload["reply_to_message_id"])
	if chatID == 0 || text == "" {
		log.Error().Msg("reply payload incomplete")
		return "incomplete payload", nil
	}

	sent, err := d.Chat.SendMessage(ctx, chatID, text, replyTo)
	if err != nil {
		return nil, err
	}

	if slot := chat.AsString(env.Payload["persistence_key"]); slot != "" {
		key := cache.PersistenceKey(correlation.ID(ctx), slot)
		if err := d.Redis.HSet(ctx, key,
			"message_id", sent.ID,
			"chat_id", sent.ChatID,
		).Err(); err != nil {
			return nil, err
		}
		log.Info().Str("slot", slot).Int64("message_id", sent.ID).Msg("reply persisted")
	}

	return "replied", nil
}

// HandleMessageUpdate edits the caption/text of an existing message.
func HandleMessageUpdate(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch) (any, error) {
	log := correlation.Logger(ctx, d.Log)

	chatID := chat.AsInt64(env.Payload["chat_id"])
	messageID := chat.AsInt64(env.Payload["message_id"])
	text := chat.AsString(env.Payload["text"])
	if chatID == 0 || messageID == 0 || text == "" {
		log.Error().Msg("message-update payload incomplete")
		return "incomplete payload", nil
	}

	if err := d.Chat.EditCaption(ctx, chatID, messageID, text); err != nil {
		return nil, err
	}
	return "updated", nil
}

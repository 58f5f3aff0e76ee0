package worker

import (
	"context"
	"strings"

	"github.com/baechuer/media-pirate/internal/chat"
	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/core/router"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
)

// RateLimitedText is what the user sees when the window quota is spent.
const RateLimitedText = "⏳ Too many requests. Please try again shortly."

// commandTokens maps chat command words to command event types.
var commandTokens = map[string]string{
	".vdl": event.TypeVideoDownload,
	".adl": event.TypeAudioDownload,
}

// rateCharge is stashed in the scratch when a command was accepted, so the
// after-middleware knows whom to charge and where to send the optimistic
// reply.
type rateCharge struct {
	UserID    int64
	ChatID    int64
	MessageID int64
}

// HandleTelegramRaw maps the command token of a raw chat message to a
// command event and republishes it. Rate-limited users get a reply instead
// of a command.
func HandleTelegramRaw(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch) (any, error) {
	log := correlation.Logger(ctx, d.Log)
	msg := chat.FromPayload(env.Payload)

	if len(msg.FilteredParts) == 0 {
		log.Info().Msg("message has no actionable keywords")
		return "no command", nil
	}

	token := strings.ToLower(msg.FilteredParts[0])
	commandType, ok := commandTokens[token]
	if !ok {
		log.Info().Str("token", token).Msg("no handler for command word")
		return "unknown command", nil
	}

	// The gateway's flag is advisory; re-check in case the window rolled
	// between ingress and consumption.
	limited := env.IsRateLimited
	if !limited {
		allowed, err := d.Limiter.IsAllowed(ctx, msg.FromUserID)
		if err != nil {
			return nil, err
		}
		limited = !allowed
	}

	if limited {
		log.Warn().Int64("user_id", msg.FromUserID).Msg("rate limited; replying instead of downloading")
		reply := env.Derive(event.TypeGatewayReply, map[string]any{
			"chat_id":             msg.ChatID,
			"text":                RateLimitedText,
			"reply_to_message_id": msg.MessageID,
		})
		if err := d.publish(ctx, d.Cfg.GatewayQueue, reply); err != nil {
			return nil, err
		}
		return "rate limited", nil
	}

	command := env.Derive(commandType, env.Payload)
	if err := d.publish(ctx, d.Cfg.TelegramQueue, command); err != nil {
		return nil, err
	}

	sc.Set(KeyIncreaseRateLimit, rateCharge{
		UserID:    msg.FromUserID,
		ChatID:    msg.ChatID,
		MessageID: msg.MessageID,
	})

	return commandType, nil
}

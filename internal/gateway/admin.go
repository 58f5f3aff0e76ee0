package gateway

import (
	"context"
	"strings"

	"github.com/baechuer/media-pirate/internal/chat"
	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/core/router"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
)

// adminTokens maps admin command words to gateway command events. Only admin
// messages reach this handler: the ingress copies raw events onto the gateway
// queue solely for the admin user.
var adminTokens = map[string]string{
	".grace": event.TypeGatewayGrace,
	".smite": event.TypeGatewaySmite,
}

// HandleAdminRaw maps an admin chat message to a gateway command event.
func HandleAdminRaw(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch) (any, error) {
	log := correlation.Logger(ctx, d.Log)
	msg := chat.FromPayload(env.Payload)

	if !d.Auth.IsAdmin(msg.FromUserID) {
		log.Warn().Int64("user_id", msg.FromUserID).Msg("non-admin raw event on gateway queue dropped")
		return "not admin", nil
	}
	if len(msg.FilteredParts) == 0 {
		return "no command", nil
	}

	token := strings.ToLower(msg.FilteredParts[0])
	commandType, ok := adminTokens[token]
	if !ok {
		log.Debug().Str("token", token).Msg("no admin command for token")
		return "unknown command", nil
	}

	command := env.Derive(commandType, env.Payload)
	if err := d.publish(ctx, d.Cfg.GatewayQueue, command); err != nil {
		return nil, err
	}
	return commandType, nil
}

// HandleGrace grants the chat access and acknowledges with a reaction.
func HandleGrace(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch) (any, error) {
	log := correlation.Logger(ctx, d.Log)
	msg := chat.FromPayload(env.Payload)
	if msg.ChatID == 0 {
		log.Error().Msg("grace payload has no chat_id")
		return "incomplete payload", nil
	}

	if err := d.Auth.Grace(ctx, msg.ChatID); err != nil {
		return nil, err
	}
	if msg.MessageID != 0 {
		if err := d.Chat.React(ctx, msg.ChatID, msg.MessageID, "👍"); err != nil {
			log.Warn().Err(err).Msg("grace reaction failed")
		}
	}
	log.Info().Int64("chat_id", msg.ChatID).Msg("chat graced")
	return "graced", nil
}

// HandleSmite revokes the chat's access grant.
func HandleSmite(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch) (any, error) {
	log := correlation.Logger(ctx, d.Log)
	msg := chat.FromPayload(env.Payload)
	if msg.ChatID == 0 {
		log.Error().Msg("smite payload has no chat_id")
		return "incomplete payload", nil
	}

	if err := d.Auth.Smite(ctx, msg.ChatID); err != nil {
		return nil, err
	}
	if msg.MessageID != 0 {
		if err := d.Chat.React(ctx, msg.ChatID, msg.MessageID, "👍"); err != nil {
			log.Warn().Err(err).Msg("smite reaction failed")
		}
	}
	log.Info().Int64("chat_id", msg.ChatID).Msg("chat smitten")
	return "smitten", nil
}

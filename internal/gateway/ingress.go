package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/baechuer/media-pirate/internal/cache"
	"github.com/baechuer/media-pirate/internal/chat"
	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
)

// Ingress drains chat updates and turns each authorized message into an
// events.telegram.raw envelope on the worker queue. Admin messages are
// additionally copied onto the gateway's own queue so admin command words
// (.grace, .smite) can be mapped there.
type Ingress struct {
	Deps   *Deps
	Source chat.Source
}

// Run blocks until the update channel closes or ctx is done.
func (i *Ingress) Run(ctx context.Context) error {
	updates, err := i.Source.Updates(ctx)
	if err != nil {
		return fmt.Errorf("open update stream: %w", err)
	}
	i.Deps.Log.Info().Msg("ingress draining chat updates")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			if err := i.handle(ctx, msg); err != nil {
				i.Deps.Log.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("ingress failed on update")
			}
		}
	}
}

func (i *Ingress) handle(ctx context.Context, msg chat.Message) error {
	d := i.Deps

	// Every chain starts here; everything downstream inherits this id.
	ctx = correlation.WithID(ctx, uuid.NewString())
	log := correlation.Logger(ctx, d.Log)

	allowed, err := d.Auth.IsAllowed(ctx, msg.FromUserID, msg.ChatID)
	if err != nil {
		return err
	}
	if !allowed {
		log.Info().Int64("user_id", msg.FromUserID).Int64("chat_id", msg.ChatID).Msg("unauthorized message dropped")
		return nil
	}

	withinQuota, err := d.Limiter.IsAllowed(ctx, msg.FromUserID)
	if err != nil {
		return err
	}

	corr := correlation.ID(ctx)
	start := fmt.Sprintf("%.6f", float64(time.Now().UnixNano())/1e9)
	if err := d.Redis.HSet(ctx, cache.CorrelationKey(corr), cache.StartTimeField, start).Err(); err != nil {
		return err
	}

	env := &event.Envelope{
		Type:          event.TypeTelegramRaw,
		Version:       1,
		CorrelationID: corr,
		Timestamp:     event.Now(),
		Payload:       chat.ToPayload(msg),
		IsRateLimited: !withinQuota,
	}

	if err := d.publish(ctx, d.Cfg.TelegramQueue, env); err != nil {
		return err
	}
	if d.Auth.IsAdmin(msg.FromUserID) {
		if err := d.publish(ctx, d.Cfg.GatewayQueue, env); err != nil {
			return err
		}
	}
	return nil
}

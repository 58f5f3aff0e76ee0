package worker

import (
	"context"
	"fmt"

	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/core/router"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
)

const (
	// KeyIncreaseRateLimit is the scratch key the raw handler sets when a
	// command was accepted and should be charged against the quota.
	KeyIncreaseRateLimit = "increase_rate_limit"

	// OptimisticReplySlot names the persistence slot the gateway records the
	// "processing" message under, so it can be deleted on delivery.
	OptimisticReplySlot = "optimistic_reply"

	// MiddlewareRateLimitIncrement is the registered name of the
	// after-middleware below.
	MiddlewareRateLimitIncrement = "maybe_rate_limit_increment"
)

// MaybeRateLimitIncrement charges the quota after a command was accepted and
// sends the optimistic "processing" reply the gateway will persist under the
// optimistic-reply slot. A dispatch that never set the scratch flag is a
// no-op.
func MaybeRateLimitIncrement(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch) (any, error) {
	v, ok := sc.Get(KeyIncreaseRateLimit)
	if !ok {
		return "skipped", nil
	}
	charge, ok := v.(rateCharge)
	if !ok {
		return nil, fmt.Errorf("unexpected scratch value under %s", KeyIncreaseRateLimit)
	}

	count, err := d.Limiter.Increment(ctx, charge.UserID)
	if err != nil {
		return nil, err
	}
	log := correlation.Logger(ctx, d.Log)
	log.Info().
		Int64("user_id", charge.UserID).
		Int64("count", count).
		Msg("rate limit charged")

	reply := env.Derive(event.TypeGatewayReply, map[string]any{
		"chat_id":             charge.ChatID,
		"text":                fmt.Sprintf("⏳ **Processing**\nID: `%s`", correlation.ID(ctx)),
		"reply_to_message_id": charge.MessageID,
		"persistence_key":     OptimisticReplySlot,
	})
	if err := d.publish(ctx, d.Cfg.GatewayQueue, reply); err != nil {
		return nil, err
	}
	return count, nil
}

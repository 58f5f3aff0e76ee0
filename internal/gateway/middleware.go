package gateway

import (
	"context"

	"github.com/baechuer/media-pirate/internal/cache"
	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/core/router"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
)

const (
	// KeyCleanupCorrelation is set by handlers whose chain is finished, so
	// the after-middleware below drops the chain's redis hash.
	KeyCleanupCorrelation = "cleanup_correlation"

	// MiddlewareCleanupCounter runs after every gateway dispatch.
	MiddlewareCleanupCounter = "cleanup_event_counter"
	// MiddlewareCorrelationCleanup runs after every gateway dispatch.
	MiddlewareCorrelationCleanup = "maybe_cleanup_correlation_redis"

	// cleanupEventThreshold is how many gateway events pass between disk
	// cleanup sweeps.
	cleanupEventThreshold = 100
)

// CleanupCounter counts dispatched gateway events and, every hundredth one,
// resets the counter and schedules a bounded disk cleanup.
func CleanupCounter(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch) (any, error) {
	count, err := d.Redis.Incr(ctx, cache.CleanupCounterKey).Result()
	if err != nil {
		return nil, err
	}
	if count == 1 {
		// A counter that never reaches the threshold still decays.
		if err := d.Redis.Expire(ctx, cache.CleanupCounterKey, cache.CleanupCounterTTL).Err(); err != nil {
			return nil, err
		}
	}
	if count < cleanupEventThreshold {
		return count, nil
	}

	if err := d.Redis.Del(ctx, cache.CleanupCounterKey).Err(); err != nil {
		return nil, err
	}
	sweep := env.Derive(event.TypeDownloadsCleanup, map[string]any{
		"max_delete": cleanupEventThreshold,
	})
	if err := d.publish(ctx, d.Cfg.GatewayQueue, sweep); err != nil {
		return nil, err
	}
	log := correlation.Logger(ctx, d.Log)
	log.Info().Int64("count", count).Msg("disk cleanup scheduled")
	return count, nil
}

// CorrelationCleanup drops the chain's redis hash once a handler marked the
// chain finished. Chains without the scratch flag keep their hash.
func CorrelationCleanup(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch) (any, error) {
	if !sc.Bool(KeyCleanupCorrelation) {
		return "skipped", nil
	}
	key := cache.CorrelationKey(correlation.ID(ctx))
	if err := d.Redis.Del(ctx, key).Err(); err != nil {
		return nil, err
	}
	log := correlation.Logger(ctx, d.Log)
	log.Debug().Str("key", key).Msg("correlation hash dropped")
	return "cleaned", nil
}

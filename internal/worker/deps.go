// Package worker implements the media-pirate service: it maps chat command
// tokens to command events, performs the media downloads, stages artifacts
// in the bucket and announces ready events to the gateway.
package worker

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/baechuer/media-pirate/internal/config"
	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/downloader"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
	"github.com/baechuer/media-pirate/internal/ratelimit"
	"github.com/baechuer/media-pirate/internal/storage"
)

// Bus is the outbound slice of the broker container.
type Bus interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// ObjectStore is the staging-bucket surface the worker needs.
type ObjectStore interface {
	Stat(ctx context.Context, objectKey string) (*storage.ObjectInfo, error)
	UploadFile(ctx context.Context, objectKey, path, contentType string, meta storage.ObjectMetadata) error
	PresignGet(ctx context.Context, objectKey, contentType, filename string) (string, error)
}

// Deps is the dependency aggregate passed to every worker handler and
// middleware.
type Deps struct {
	Cfg        *config.Config
	Log        zerolog.Logger
	Redis      *redis.Client
	Bus        Bus
	Limiter    *ratelimit.FixedWindow
	Store      ObjectStore
	Downloader downloader.Downloader
}

// publish serializes the envelope and sends it to the queue, logging under
// the chain's correlation id.
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

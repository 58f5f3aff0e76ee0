package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/baechuer/media-pirate/internal/cache"
	"github.com/baechuer/media-pirate/internal/chat"
	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/core/router"
	"github.com/baechuer/media-pirate/internal/downloader"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
	"github.com/baechuer/media-pirate/internal/pkg/urlutil"
	"github.com/baechuer/media-pirate/internal/storage"
)

// UnsupportedText replaces the optimistic reply when the source cannot be
// fetched.
const UnsupportedText = "⚠️ Unsupported source"

// HandleVideoDownload stages the requested video and announces it ready.
func HandleVideoDownload(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch) (any, error) {
	return handleDownload(ctx, d, env, downloader.KindVideo)
}

// HandleAudioDownload stages the requested audio and announces it ready.
func HandleAudioDownload(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch) (any, error) {
	return handleDownload(ctx, d, env, downloader.KindAudio)
}

func handleDownload(ctx context.Context, d *Deps, env *event.Envelope, kind downloader.Kind) (any, error) {
	log := correlation.Logger(ctx, d.Log)
	msg := chat.FromPayload(env.Payload)

	var arg string
	if len(msg.FilteredParts) > 1 {
		arg = msg.FilteredParts[1]
	}
	rawURL := extractURL(arg, msg.ReplyText)
	if rawURL == "" {
		log.Error().Msg("command did not contain a valid URL")
		return "no url", nil
	}

	cleaned, err := urlutil.Normalize(rawURL)
	if err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("cannot normalize source url")
		return d.notifyUnsupported(ctx, msg)
	}

	hash := urlutil.Hash(cleaned)
	objectKey := fmt.Sprintf("%s/%s", kind, hash)

	info, err := d.Store.Stat(ctx, objectKey)
	if err != nil {
		return nil, err
	}

	if info != nil {
		// Already staged under the same content hash; skip the network
		// fetch entirely.
		log.Info().Str("object_key", objectKey).Msg("staging cache hit")
		presigned, err := d.Store.PresignGet(ctx, objectKey, info.ContentType, info.Meta.OriginalName)
		if err != nil {
			return nil, err
		}
		if err := d.publishReady(ctx, env, kind, presigned, msg); err != nil {
			return nil, err
		}
		return "staged from cache", nil
	}

	res, err := d.Downloader.Download(ctx, cleaned, kind)
	if errors.Is(err, downloader.ErrUnsupported) {
		log.Warn().Str("url", cleaned).Msg("source not supported by downloader")
		return d.notifyUnsupported(ctx, msg)
	}
	if err != nil {
		return nil, err
	}
	defer os.Remove(res.Path)

	meta := storage.ObjectMetadata{
		Extension:         res.Extension,
		OriginalName:      res.Filename,
		SourceURLHash:     hash,
		DownloadTimestamp: event.Now(),
		OriginalURL:       rawURL,
		CleanedURL:        cleaned,
		URLDomain:         urlutil.Domain(cleaned),
	}
	if err := d.Store.UploadFile(ctx, objectKey, res.Path, res.ContentType, meta); err != nil {
		return nil, err
	}
	log.Info().Str("object_key", objectKey).Str("content_type", res.ContentType).Msg("artifact staged")

	presigned, err := d.Store.PresignGet(ctx, objectKey, res.ContentType, res.Filename)
	if err != nil {
		return nil, err
	}
	if err := d.publishReady(ctx, env, kind, presigned, msg); err != nil {
		return nil, err
	}
	return "downloaded and staged", nil
}

func (d *Deps) publishReady(ctx context.Context, env *event.Envelope, kind downloader.Kind, presigned string, msg chat.Normalized) error {
	readyType := event.TypeVideoReady
	if kind == downloader.KindAudio {
		readyType = event.TypeAudioReady
	}
	ready := env.Derive(readyType, map[string]any{
		"presigned_url": presigned,
		"message_id":    msg.MessageID,
		"chat_id":       msg.ChatID,
	})
	return d.publish(ctx, d.Cfg.GatewayQueue, ready)
}

// notifyUnsupported updates the user's optimistic reply to an "unsupported"
// caption, falling back to a plain reply when no optimistic reply was
// recorded.
func (d *Deps) notifyUnsupported(ctx context.Context, msg chat.Normalized) (any, error) {
	key := cache.PersistenceKey(correlation.ID(ctx), OptimisticReplySlot)
	vals, err := d.Redis.HMGet(ctx, key, "message_id", "chat_id").Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	var messageID, chatID int64
	if len(vals) == 2 {
		messageID = chat.AsInt64(vals[0])
		chatID = chat.AsInt64(vals[1])
	}

	parent := &event.Envelope{CorrelationID: correlation.ID(ctx)}
	if messageID != 0 && chatID != 0 {
		update := parent.Derive(event.TypeMessageUpdate, map[string]any{
			"chat_id":    chatID,
			"message_id": messageID,
			"text":       UnsupportedText,
		})
		if err := d.publish(ctx, d.Cfg.GatewayQueue, update); err != nil {
			return nil, err
		}
		return "unsupported source; caption updated", nil
	}

	reply := parent.Derive(event.TypeGatewayReply, map[string]any{
		"chat_id":             msg.ChatID,
		"text":                UnsupportedText,
		"reply_to_message_id": msg.MessageID,
	})
	if err := d.publish(ctx, d.Cfg.GatewayQueue, reply); err != nil {
		return nil, err
	}
	return "unsupported source; replied", nil
}

// extractURL picks the first candidate that looks like an http(s) URL.
func extractURL(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if strings.HasPrefix(c, "http://") || strings.HasPrefix(c, "https://") {
			return c
		}
	}
	return ""
}

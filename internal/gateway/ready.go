package gateway

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/baechuer/media-pirate/internal/cache"
	"github.com/baechuer/media-pirate/internal/chat"
	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/core/router"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
	"github.com/baechuer/media-pirate/internal/pkg/urlutil"
)

const (
	// coalesceDelay is how long a losing consumer waits before putting the
	// ready event back on the queue, plus up to a second of jitter so
	// contenders do not retry in lockstep.
	coalesceDelay = 2 * time.Second

	kindVideo = "video"
	kindAudio = "audio"
)

// HandleVideoReady delivers a staged video to the requesting chat.
func HandleVideoReady(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch) (any, error) {
	return handleReady(ctx, d, env, sc, kindVideo)
}

// HandleAudioReady delivers a staged audio file to the requesting chat.
func HandleAudioReady(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch) (any, error) {
	return handleReady(ctx, d, env, sc, kindAudio)
}

// handleReady is the delivery path for a staged artifact. Duplicate ready
// events for the same object coalesce: the first consumer takes the interest
// lock and uploads to the platform; the rest wait and retry, by which time
// the platform file id is cached and they deliver without touching disk.
func handleReady(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch, kind string) (any, error) {
	log := correlation.Logger(ctx, d.Log)

	presigned := chat.AsString(env.Payload["presigned_url"])
	messageID := chat.AsInt64(env.Payload["message_id"])
	chatID := chat.AsInt64(env.Payload["chat_id"])
	if presigned == "" || messageID == 0 || chatID == 0 {
		log.Error().Msg("ready event payload incomplete")
		return "incomplete payload", nil
	}

	// The signed query differs between presignings of one object; the base
	// URL does not, so its hash identifies the staged content.
	base, err := urlutil.BaseURL(presigned)
	if err != nil {
		return nil, err
	}
	objectHash := urlutil.Hash(base)

	cachedFileID, err := d.Redis.Get(ctx, cache.ContentKey(kind, objectHash)).Result()
	if err == redis.Nil {
		cachedFileID = ""
	} else if err != nil {
		return nil, err
	}

	lockKey := cache.InterestLockKey(kind, objectHash)
	acquired, err := d.Redis.SetNX(ctx, lockKey, "ongoing", cache.InterestLockTTL).Result()
	if err != nil {
		return nil, err
	}

	if !acquired && cachedFileID == "" {
		// Someone else is uploading this object right now. Give them a
		// moment, then requeue the event; the retry should hit the
		// content cache instead.
		delay := coalesceDelay + time.Duration(rand.Int63n(int64(time.Second)))
		log.Info().Str("lock", lockKey).Dur("delay", delay).Msg("delivery in progress elsewhere; delaying")
		d.pause(ctx, delay)
		if err := d.publish(ctx, d.Cfg.GatewayQueue, env); err != nil {
			return nil, err
		}
		return "delayed", nil
	}

	if cachedFileID != "" {
		res, err := d.deliverCached(ctx, kind, chatID, messageID, cachedFileID, lockKey, sc)
		if err == nil {
			return res, nil
		}
		log.Warn().Err(err).Msg("cached file id rejected; falling back to disk delivery")
	}

	filePath := filepath.Join(d.Cfg.DownloadsDir, objectHash)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := d.fetchToDisk(ctx, presigned, filePath); err != nil {
			d.Redis.Del(ctx, lockKey)
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		log.Info().Str("path", filePath).Msg("artifact already on disk")
	}

	corr := correlation.ID(ctx)
	sent, err := d.sendMedia(ctx, kind, chatID, chat.MediaRef{Path: filePath},
		fmt.Sprintf("🚀 **Downloading**\nID: `%s`", corr), messageID)
	if err != nil {
		d.Redis.Del(ctx, lockKey)
		return nil, err
	}

	final := fmt.Sprintf("🚀 **Download Complete**\nID: `%s`", corr)
	if took := d.elapsedSinceIngress(ctx, corr, log); took != "" {
		final = fmt.Sprintf("🚀 **Download Complete**\nTook: __%s__\nID: `%s`", took, corr)
	}
	if err := d.Chat.EditCaption(ctx, chatID, sent.ID, final); err != nil {
		log.Warn().Err(err).Msg("caption edit failed after delivery")
	}

	if sent.FileID != "" {
		if err := d.Redis.Set(ctx, cache.ContentKey(kind, objectHash), sent.FileID, cache.ContentIDTTL).Err(); err != nil {
			return nil, err
		}
	} else {
		log.Error().Msg("platform returned no media handle; content cache not primed")
	}

	if err := d.finishDelivery(ctx, lockKey, sc); err != nil {
		return nil, err
	}
	if fi, err := os.Stat(filePath); err == nil {
		log.Info().Str("size", humanize.Bytes(uint64(fi.Size()))).Str("path", filePath).Msg("media delivered from disk")
	}
	return "delivered from disk", nil
}

// deliverCached sends by platform file id, skipping disk entirely.
func (d *Deps) deliverCached(ctx context.Context, kind string, chatID, messageID int64, fileID, lockKey string, sc *router.Scratch) (string, error) {
	corr := correlation.ID(ctx)
	log := correlation.Logger(ctx, d.Log)

	caption := fmt.Sprintf("🚀 **Download Complete**\nID: `%s`", corr)
	if took := d.elapsedSinceIngress(ctx, corr, log); took != "" {
		caption = fmt.Sprintf("🚀 **Download Complete**\nTook: __%s__\nID: `%s`", took, corr)
	}

	if _, err := d.sendMedia(ctx, kind, chatID, chat.MediaRef{FileID: fileID}, caption, messageID); err != nil {
		return "", err
	}
	if err := d.finishDelivery(ctx, lockKey, sc); err != nil {
		return "", err
	}
	log.Info().Str("file_id", fileID).Msg("media delivered from content cache")
	return "delivered from content cache", nil
}

func (d *Deps) finishDelivery(ctx context.Context, lockKey string, sc *router.Scratch) error {
	if err := d.Redis.Del(ctx, lockKey).Err(); err != nil {
		return err
	}
	if err := d.optimisticReplyCleanup(ctx); err != nil {
		log := correlation.Logger(ctx, d.Log)
		log.Warn().Err(err).Msg("optimistic reply cleanup failed")
	}
	sc.Set(KeyCleanupCorrelation, true)
	return nil
}

func (d *Deps) sendMedia(ctx context.Context, kind string, chatID int64, ref chat.MediaRef, caption string, replyTo int64) (*chat.SentMessage, error) {
	if kind == kindAudio {
		return d.Chat.SendAudio(ctx, chatID, ref, caption, replyTo)
	}
	return d.Chat.SendVideo(ctx, chatID, ref, caption, replyTo)
}

// fetchToDisk streams the presigned object into the downloads directory.
func (d *Deps) fetchToDisk(ctx context.Context, presigned, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, presigned, nil)
	if err != nil {
		return err
	}
	client := d.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch staged artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch staged artifact: unexpected status %s", resp.Status)
	}

	tmp := dst + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// elapsedSinceIngress formats the time since the chain's ingress stamp, or ""
// when no stamp exists (e.g. replayed events whose chain hash expired).
func (d *Deps) elapsedSinceIngress(ctx context.Context, corr string, log zerolog.Logger) string {
	raw, err := d.Redis.HGet(ctx, cache.CorrelationKey(corr), cache.StartTimeField).Result()
	if err == redis.Nil {
		return ""
	}
	if err != nil {
		log.Warn().Err(err).Msg("ingress stamp lookup failed")
		return ""
	}
	start, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn().Err(err).Str("start_time", raw).Msg("ingress stamp unparseable")
		return ""
	}
	elapsed := time.Since(time.Unix(0, int64(start*float64(time.Second))))
	if elapsed < 0 {
		return ""
	}
	return formatElapsed(elapsed)
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0f ms", float64(d.Microseconds())/1000)
	}
	return d.Round(10 * time.Millisecond).String()
}

package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/media-pirate/internal/config"
	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/downloader"
	"github.com/baechuer/media-pirate/internal/ratelimit"
	"github.com/baechuer/media-pirate/internal/storage"
)

type published struct {
	Queue string
	Env   *event.Envelope
}

type fakeBus struct {
	mu     sync.Mutex
	events []published
}

func (b *fakeBus) Publish(_ context.Context, routingKey string, body []byte) error {
	env, err := event.FromWire(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{Queue: routingKey, Env: env})
	return nil
}

func (b *fakeBus) byType(eventType string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []published
	for _, p := range b.events {
		if p.Env.Type == eventType {
			out = append(out, p)
		}
	}
	return out
}

type fakeStore struct {
	objects   map[string]*storage.ObjectInfo
	uploaded  map[string]storage.ObjectMetadata
	presigned string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:   map[string]*storage.ObjectInfo{},
		uploaded:  map[string]storage.ObjectMetadata{},
		presigned: "http://minio:9000/media-staging/presigned",
	}
}

func (s *fakeStore) Stat(_ context.Context, objectKey string) (*storage.ObjectInfo, error) {
	return s.objects[objectKey], nil
}

func (s *fakeStore) UploadFile(_ context.Context, objectKey, path, contentType string, meta storage.ObjectMetadata) error {
	s.objects[objectKey] = &storage.ObjectInfo{ContentType: contentType, Meta: meta}
	s.uploaded[objectKey] = meta
	return nil
}

func (s *fakeStore) PresignGet(_ context.Context, objectKey, contentType, filename string) (string, error) {
	return s.presigned + "/" + objectKey, nil
}

type fakeDownloader struct {
	result *downloader.Result
	err    error
	calls  []string
}

func (d *fakeDownloader) Download(_ context.Context, url string, kind downloader.Kind) (*downloader.Result, error) {
	d.calls = append(d.calls, url)
	if d.err != nil {
		return nil, d.err
	}
	return d.result, nil
}

type workerHarness struct {
	deps  *Deps
	bus   *fakeBus
	store *fakeStore
	dl    *fakeDownloader
	redis *miniredis.Miniredis
}

func newWorkerHarness(t *testing.T) *workerHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	bus := &fakeBus{}
	store := newFakeStore()
	dl := &fakeDownloader{}

	deps := &Deps{
		Cfg: &config.Config{
			TelegramQueue: "telegram_events",
			GatewayQueue:  "gateway_events",
		},
		Log:        zerolog.Nop(),
		Redis:      client,
		Bus:        bus,
		Limiter:    ratelimit.NewFixedWindow(client, time.Minute, 5),
		Store:      store,
		Downloader: dl,
	}
	return &workerHarness{deps: deps, bus: bus, store: store, dl: dl, redis: mr}
}

func rawEvent(t *testing.T, text string) *event.Envelope {
	t.Helper()
	env := event.New(event.TypeTelegramRaw, map[string]any{
		"message_id":     int64(10),
		"chat_id":        int64(-20),
		"text":           text,
		"from_user_id":   int64(30),
		"from_user_name": "cap",
	})
	require.NotEmpty(t, env.CorrelationID)
	return env
}

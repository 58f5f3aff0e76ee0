package gateway

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/baechuer/media-pirate/internal/chat"
	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/core/router"
	"github.com/baechuer/media-pirate/internal/pkg/correlation"
)

// DefaultMaxDelete bounds one cleanup pass when the payload does not say.
const DefaultMaxDelete = 1000

// HandleDownloadsCleanup unlinks the oldest files from the downloads
// directory, up to payload max_delete.
func HandleDownloadsCleanup(ctx context.Context, d *Deps, env *event.Envelope, sc *router.Scratch) (any, error) {
	log := correlation.Logger(ctx, d.Log)

	maxDelete := int(chat.AsInt64(env.Payload["max_delete"]))
	if maxDelete <= 0 {
		maxDelete = DefaultMaxDelete
	}

	removed, err := deleteOldestFiles(d.Cfg.DownloadsDir, maxDelete)
	if err != nil {
		return nil, err
	}
	log.Info().Int("removed", len(removed)).Str("dir", d.Cfg.DownloadsDir).Msg("downloads cleanup done")
	return removed, nil
}

// deleteOldestFiles removes up to max files, oldest mtime first. Files that
// vanish between listing and unlinking are skipped, not errors.
func deleteOldestFiles(dir string, max int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	type candidate struct {
		name  string
		mtime int64
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{name: e.Name(), mtime: info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mtime < files[j].mtime })

	var removed []string
	for _, f := range files {
		if len(removed) >= max {
			break
		}
		path := filepath.Join(dir, f.name)
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, err
		}
		removed = append(removed, f.name)
	}
	return removed, nil
}

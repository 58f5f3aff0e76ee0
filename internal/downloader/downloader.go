// Package downloader is the boundary to the media-fetching tool. The worker
// consumes the Downloader interface; the concrete adapter shells out to
// yt-dlp.
package downloader

import (
	"context"
	"errors"
)

// ErrUnsupported marks sources the tool cannot fetch. The worker turns this
// into a user-facing "Unsupported source" caption rather than a retry.
var ErrUnsupported = errors.New("unsupported download source")

// Kind selects the artifact flavor to extract.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Result describes a fetched artifact on local disk.
type Result struct {
	Path        string
	ContentType string
	Extension   string
	// Filename is the friendly name reported by the source, used for the
	// attachment disposition on the presigned URL.
	Filename string
}

type Downloader interface {
	Download(ctx context.Context, url string, kind Kind) (*Result, error)
}

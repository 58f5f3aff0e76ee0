package downloader

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// YTDLP shells out to the yt-dlp binary. Each download lands in its own
// directory under workDir; callers remove the file after staging it.
type YTDLP struct {
	binary  string
	workDir string
	log     zerolog.Logger
}

func NewYTDLP(binary, workDir string, log zerolog.Logger) *YTDLP {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLP{
		binary:  binary,
		workDir: workDir,
		log:     log.With().Str("component", "ytdlp").Logger(),
	}
}

func (y *YTDLP) Download(ctx context.Context, url string, kind Kind) (*Result, error) {
	if err := os.MkdirAll(y.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	dir, err := os.MkdirTemp(y.workDir, "dl-*")
	if err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	args := []string{
		"--no-playlist",
		"--restrict-filenames",
		"--print", "after_move:filepath",
		"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
	}
	switch kind {
	case KindAudio:
		args = append(args, "-x", "--audio-format", "mp3")
	default:
		args = append(args, "-f", "mp4/bestvideo*+bestaudio/best")
	}
	args = append(args, url)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, y.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	y.log.Info().Str("url", url).Str("kind", string(kind)).Msg("starting download")
	if err := cmd.Run(); err != nil {
		os.RemoveAll(dir)
		if strings.Contains(stderr.String(), "Unsupported URL") {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, url)
		}
		return nil, fmt.Errorf("yt-dlp: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	path := strings.TrimSpace(stdout.String())
	if path == "" {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("yt-dlp reported no output file for %s", url)
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	contentType := mime.TypeByExtension("." + ext)
	if contentType == "" {
		if kind == KindAudio {
			contentType = "audio/mpeg"
		} else {
			contentType = "video/mp4"
		}
	}

	return &Result{
		Path:        path,
		ContentType: contentType,
		Extension:   ext,
		Filename:    filepath.Base(path),
	}, nil
}

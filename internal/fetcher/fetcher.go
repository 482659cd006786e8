// Package fetcher wraps the external yt-dlp binary used to pull audio
// streams for cached playback.
package fetcher

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"strings"
)

// AudioExtensions are the container formats yt-dlp may deliver.
var AudioExtensions = []string{".webm", ".m4a", ".mp4", ".opus", ".ogg"}

// Fetcher downloads audio for a video id into a destination directory.
// The download manager is the only caller.
type Fetcher interface {
	FetchAudio(ctx context.Context, videoID, destDir string) (string, error)
}

type YTDLP struct {
	binary string
}

func NewYTDLP(binary string) *YTDLP {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLP{binary: binary}
}

// Version checks the binary so a missing install surfaces at startup
// instead of on the first download.
func (y *YTDLP) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, y.binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp not available: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// FetchAudio downloads the best audio stream for videoID into destDir and
// returns the final file path. The context deadline bounds the whole
// download; on expiry the process is killed.
func (y *YTDLP) FetchAudio(ctx context.Context, videoID, destDir string) (string, error) {
	outTemplate := filepath.Join(destDir, videoID+".%(ext)s")
	args := []string{
		"-f", "bestaudio",
		"--no-playlist",
		"--no-progress",
		"-o", outTemplate,
		"--print", "after_move:filepath",
		"https://www.youtube.com/watch?v=" + videoID,
	}

	cmd := exec.CommandContext(ctx, y.binary, args...)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("download timed out for %s: %w", videoID, ctx.Err())
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("yt-dlp failed for %s: %s", videoID, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("yt-dlp failed for %s: %w", videoID, err)
	}

	path := strings.TrimSpace(string(out))
	if path == "" {
		// Older builds do not support --print; fall back to globbing the
		// known audio extensions.
		found, ferr := FindDownloaded(destDir, videoID)
		if ferr != nil {
			return "", ferr
		}
		path = found
	}
	log.Printf("[fetcher] downloaded %s -> %s", videoID, filepath.Base(path))
	return path, nil
}

// FindDownloaded locates the file yt-dlp wrote for a video id.
func FindDownloaded(destDir, videoID string) (string, error) {
	for _, ext := range AudioExtensions {
		matches, err := filepath.Glob(filepath.Join(destDir, videoID+ext))
		if err == nil && len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", fmt.Errorf("no output file found for %s", videoID)
}

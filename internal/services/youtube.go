// YouTube [Fetcher] implementation
//
// Runs yt-dlp through go-ytdlp: one "ytsearch1:" query per song, best audio transcoded to mp3.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songzip/internal/models"
	"github.com/desertthunder/songzip/internal/shared"
	"github.com/lrstanley/go-ytdlp"
)

const (
	defaultAudioFormat  = "mp3"
	defaultAudioQuality = "192K"
	outputTemplate      = "%(title)s.%(ext)s"
)

// DownloadFunc runs one search-and-download of query into dir.
// It returns the path of the written file when the downloader reports one, or "" if it does not.
type DownloadFunc func(ctx context.Context, query, dir string) (string, error)

// YouTubeService implements [Fetcher] by searching YouTube and extracting audio with yt-dlp.
type YouTubeService struct {
	executable   string
	audioFormat  string
	audioQuality string
	download     DownloadFunc
	logger       *log.Logger
}

// NewYouTubeService creates a fetcher from the fetcher config. An empty executable uses yt-dlp from PATH.
func NewYouTubeService(cfg shared.FetcherConfig, logger *log.Logger) *YouTubeService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	y := &YouTubeService{
		executable:   cfg.YTDLPPath,
		audioFormat:  cfg.AudioFormat,
		audioQuality: cfg.AudioQuality,
		logger:       logger,
	}
	if y.audioFormat == "" {
		y.audioFormat = defaultAudioFormat
	}
	if y.audioQuality == "" {
		y.audioQuality = defaultAudioQuality
	}
	y.download = y.runYTDLP
	return y
}

// WithDownloadFunc replaces the yt-dlp invocation, e.g. with a fake in tests.
func (y *YouTubeService) WithDownloadFunc(fn DownloadFunc) *YouTubeService {
	y.download = fn
	return y
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

// Fetch searches YouTube for song and writes the extracted audio into dir.
//
// Returns the path of the written file. A file overwritten in place (same title twice) counts as written.
// A run that produces no file is reported as [shared.ErrTrackNotFound].
func (y *YouTubeService) Fetch(ctx context.Context, song models.Song, dir string) (string, error) {
	if !song.Valid() {
		return "", fmt.Errorf("%w: empty song name", shared.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}

	before, err := listFiles(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}

	started := time.Now()
	reported, err := y.download(ctx, song.Query(), dir)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s: %v", shared.ErrFetchFailed, song, err)
	}

	file, err := reportedFile(dir, reported)
	if file == "" && err == nil {
		file, err = producedFile(dir, before, started)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}
	if file == "" {
		return "", fmt.Errorf("%w: no result for %q", shared.ErrTrackNotFound, song.Query())
	}

	y.logger.Debug("fetched song", "song", song.String(), "file", filepath.Base(file), "took", time.Since(started))
	return file, nil
}

func (y *YouTubeService) runYTDLP(ctx context.Context, query, dir string) (string, error) {
	dl := ytdlp.New().
		Format("bestaudio/best").
		ExtractAudio().
		AudioFormat(y.audioFormat).
		AudioQuality(y.audioQuality).
		Output(filepath.Join(dir, outputTemplate)).
		NoPlaylist().
		ForceOverwrites().
		Print("after_move:filepath").
		NoSimulate().
		Quiet()

	if y.executable != "" {
		dl.SetExecutable(y.executable)
	}

	result, err := dl.Run(ctx, "ytsearch1:"+query)
	if err != nil {
		if result != nil && strings.TrimSpace(result.Stderr) != "" {
			return "", fmt.Errorf("%w: %s", err, lastLine(result.Stderr))
		}
		return "", err
	}
	if result == nil || strings.TrimSpace(result.Stdout) == "" {
		return "", nil
	}
	return lastLine(result.Stdout), nil
}

// reportedFile resolves the path printed by yt-dlp. A relative or foreign path is looked up by name in dir.
// Returns "" when nothing usable was reported.
func reportedFile(dir, reported string) (string, error) {
	if reported == "" {
		return "", nil
	}

	candidates := []string{reported, filepath.Join(dir, filepath.Base(reported))}
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", err
		}
		if info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", nil
}

// listFiles returns the set of regular file names in dir.
func listFiles(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names[e.Name()] = true
		}
	}
	return names, nil
}

// producedFile returns the most recently modified file in dir that was written by the last run: either absent
// from before, or modified at or after started. Partial downloads are ignored.
func producedFile(dir string, before map[string]bool, started time.Time) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var newest string
	var newestTime time.Time
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || isPartial(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", err
		}
		if before[name] && info.ModTime().Before(started) {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest, newestTime = name, info.ModTime()
		}
	}

	if newest == "" {
		return "", nil
	}
	return filepath.Join(dir, newest), nil
}

func isPartial(name string) bool {
	return strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") || strings.HasSuffix(name, ".temp")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

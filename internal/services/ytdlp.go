package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpull/internal/models"
	goytdlp "github.com/lrstanley/go-ytdlp"
)

// YtdlpFetcher downloads through the yt-dlp binary.
//
// Separate video and audio streams are merged into an mp4 container, so every tier is reachable.
// The reported quality is the height of the file yt-dlp actually wrote.
type YtdlpFetcher struct {
	cookiesFile string
	audioOnly   bool
	logger      *log.Logger

	once       sync.Once
	installErr error
}

// NewYtdlpFetcher creates a fetcher. cookiesFile may be empty.
func NewYtdlpFetcher(cookiesFile string, audioOnly bool, logger *log.Logger) *YtdlpFetcher {
	return &YtdlpFetcher{cookiesFile: cookiesFile, audioOnly: audioOnly, logger: logger}
}

// Prepare makes sure a yt-dlp binary is available, downloading one when missing. It runs at most once.
func (f *YtdlpFetcher) Prepare(ctx context.Context) error {
	f.once.Do(func() {
		if _, err := goytdlp.Install(ctx, nil); err != nil {
			f.installErr = fmt.Errorf("failed to install yt-dlp: %w", err)
		}
	})
	return f.installErr
}

// Fetch implements [MediaFetcher].
func (f *YtdlpFetcher) Fetch(ctx context.Context, videoID string, constraint models.ResolutionConstraint, dest string) (*FetchResult, error) {
	if err := f.Prepare(ctx); err != nil {
		return nil, NewFetchError(FetchUnknown, videoID, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	base := strings.TrimSuffix(dest, filepath.Ext(dest))
	cmd := goytdlp.New().
		NoPlaylist().
		NoProgress().
		ForceOverwrites().
		Print("after_move:height").
		Print("after_move:filepath").
		Output(outputTemplate(base))

	if f.audioOnly {
		cmd = cmd.Format("ba[ext=m4a]/ba")
	} else {
		cmd = cmd.
			Format(formatSelector(constraint)).
			FormatSort(fmt.Sprintf("res:%d,ext:mp4:m4a", int(constraint.Preferred))).
			MergeOutputFormat("mp4")
	}
	if f.cookiesFile != "" {
		cmd = cmd.Cookies(f.cookiesFile)
	}

	f.logger.Debug("running yt-dlp", "video", videoID, "format", formatSelector(constraint))
	res, err := cmd.Run(ctx, models.VideoEntry{ID: videoID}.WatchURL())
	if err != nil {
		stderr := ""
		if res != nil {
			stderr = res.Stderr
		}
		return nil, NewFetchError(classifyYtdlpOutput(err.Error()+"\n"+stderr), videoID, errors.New(lastLine(stderr, err.Error())))
	}

	var quality models.Quality
	var printed string
	if res != nil {
		quality, printed = parsePrinted(res.Stdout)
	}
	path, err := finalizeOutput(base, dest, printed)
	if err != nil {
		return nil, NewFetchError(FetchUnknown, videoID, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, NewFetchError(FetchUnknown, videoID, err)
	}

	return &FetchResult{Path: path, Size: info.Size(), Quality: quality, Format: filepath.Ext(path)}, nil
}

// parsePrinted reads the height and final path printed after the move stage.
// Height is 0 when yt-dlp reports none, as for audio-only downloads.
func parsePrinted(stdout string) (models.Quality, string) {
	var lines []string
	for _, line := range strings.Split(stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return 0, ""
	}

	height, path := lines[len(lines)-2], lines[len(lines)-1]
	n, err := strconv.Atoi(height)
	if err != nil || n <= 0 {
		return 0, path
	}
	return models.Quality(n), path
}

// formatSelector limits both the merged and the single-file pick to the allowed height range.
func formatSelector(c models.ResolutionConstraint) string {
	bound := fmt.Sprintf("[height>=%d][height<=%d]", int(c.Min), int(c.Max))
	return "bv*" + bound + "+ba/b" + bound
}

// outputTemplate escapes yt-dlp's template syntax in a literal path.
func outputTemplate(base string) string {
	return strings.ReplaceAll(base, "%", "%%") + ".%(ext)s"
}

// finalizeOutput locates the file yt-dlp wrote for base.
//
// The printed path wins when it exists. A file with another container extension keeps it,
// so a webm fallback is never labelled as mp4.
func finalizeOutput(base, dest, printed string) (string, error) {
	if printed != "" {
		if _, err := os.Stat(printed); err == nil {
			return printed, nil
		}
	}
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	matches, err := filepath.Glob(globEscape(base) + ".*")
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if strings.HasSuffix(m, partSuffix) || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", fmt.Errorf("yt-dlp reported success but no file was written for %s", dest)
}

func globEscape(s string) string {
	r := strings.NewReplacer("*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}

func classifyYtdlpOutput(output string) FetchKind {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "requested format is not available"):
		return FetchNoAcceptableStream
	case IsUnavailableMessage(output):
		return FetchPermanentUnavailable
	case IsAuthMessage(output):
		return FetchAuthRequired
	case IsTransientMessage(output):
		return FetchTransient
	}
	return FetchUnknown
}

// lastLine picks the final "ERROR:" line from yt-dlp output, falling back to fallback.
func lastLine(output, fallback string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); strings.HasPrefix(line, "ERROR:") {
			return line
		}
	}
	return fallback
}

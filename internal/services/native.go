package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/shared"
	"github.com/kkdai/youtube/v2"
)

const partSuffix = ".part"

// MaxProgressiveQuality is the highest tier served with audio and video in one stream.
const MaxProgressiveQuality = models.Q360

// CheckNativeConstraint reports an error when c excludes every progressive tier.
// Audio-only downloads ignore the constraint.
func CheckNativeConstraint(c models.ResolutionConstraint, audioOnly bool) error {
	if audioOnly || c.Min <= MaxProgressiveQuality {
		return nil
	}
	return fmt.Errorf("the native backend only offers streams up to %s, but the minimum is %s; use the ytdlp backend or lower the minimum",
		MaxProgressiveQuality, c.Min)
}

// NativeFetcher downloads progressive streams in-process.
//
// Only formats that carry both audio and video are considered, so no muxing is needed.
// In audio-only mode the best audio stream is taken and the resolution constraint is ignored.
type NativeFetcher struct {
	client    *youtube.Client
	audioOnly bool
	logger    *log.Logger
}

// NewNativeFetcher creates a fetcher that issues requests through httpClient.
func NewNativeFetcher(httpClient *http.Client, audioOnly bool, logger *log.Logger) *NativeFetcher {
	return &NativeFetcher{
		client:    &youtube.Client{HTTPClient: httpClient},
		audioOnly: audioOnly,
		logger:    logger,
	}
}

// NewCookieClient returns an HTTP client whose jar is seeded from a Netscape cookie file.
//
// An empty path yields a client with an empty jar.
func NewCookieClient(cookiesFile string, transport http.RoundTripper) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if cookiesFile != "" {
		cookies, err := shared.LoadCookieFile(shared.ExpandPath(cookiesFile))
		if err != nil {
			return nil, err
		}
		origin := &url.URL{Scheme: "https", Host: "www.youtube.com"}
		jar.SetCookies(origin, cookies)
	}

	return &http.Client{Jar: jar, Transport: transport}, nil
}

// Fetch implements [MediaFetcher].
func (f *NativeFetcher) Fetch(ctx context.Context, videoID string, constraint models.ResolutionConstraint, dest string) (*FetchResult, error) {
	video, err := f.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, classifyNativeError(videoID, err)
	}

	var (
		format  *youtube.Format
		quality models.Quality
	)
	if f.audioOnly {
		format = selectAudioFormat(video.Formats)
	} else {
		format, quality = selectProgressiveFormat(video.Formats, constraint)
	}
	if format == nil {
		return nil, NewFetchError(FetchNoAcceptableStream, videoID,
			fmt.Errorf("no stream within %s among %d formats", constraint, len(video.Formats)))
	}
	f.logger.Debug("selected format", "video", videoID, "itag", format.ItagNo, "quality", format.QualityLabel, "mime", format.MimeType)

	dest = containerPath(dest, format.MimeType)

	stream, size, err := f.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, classifyNativeError(videoID, err)
	}
	defer stream.Close()

	written, err := writePartial(ctx, dest, stream, size)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, NewFetchError(kindForStreamError(err), videoID, err)
	}

	return &FetchResult{Path: dest, Size: written, Quality: quality, Format: format.MimeType}, nil
}

// containerPath swaps dest's extension for webm when the stream is not an mp4 container.
func containerPath(dest, mimeType string) string {
	if !strings.Contains(mimeType, "webm") {
		return dest
	}
	return strings.TrimSuffix(dest, filepath.Ext(dest)) + ".webm"
}

// formatQuality maps a stream to its tier, preferring the advertised label.
func formatQuality(f youtube.Format) models.Quality {
	if q := models.QualityFromLabel(f.QualityLabel); q > 0 {
		return q
	}
	side := f.Height
	if f.Width > 0 && f.Width < side {
		side = f.Width
	}
	return models.Quality(side)
}

func selectProgressiveFormat(formats youtube.FormatList, constraint models.ResolutionConstraint) (*youtube.Format, models.Quality) {
	var candidates []models.Quality
	for _, f := range formats {
		if f.AudioChannels > 0 && f.Height > 0 {
			candidates = append(candidates, formatQuality(f))
		}
	}

	tier, ok := constraint.Select(candidates)
	if !ok {
		return nil, 0
	}

	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || f.Height == 0 || formatQuality(*f) != tier {
			continue
		}
		if best == nil || preferFormat(f, best) {
			best = f
		}
	}
	return best, tier
}

func selectAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || f.Height > 0 {
			continue
		}
		if best == nil || preferFormat(f, best) {
			best = f
		}
	}
	return best
}

// preferFormat ranks mp4 containers first, then bitrate.
func preferFormat(candidate, current *youtube.Format) bool {
	cmp4 := strings.Contains(candidate.MimeType, "mp4")
	bmp4 := strings.Contains(current.MimeType, "mp4")
	if cmp4 != bmp4 {
		return cmp4
	}
	return candidate.Bitrate > current.Bitrate
}

func classifyNativeError(videoID string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	kind := FetchUnknown
	var statusErr *youtube.ErrPlayabiltyStatus
	var codeErr youtube.ErrUnexpectedStatusCode

	switch {
	case errors.Is(err, youtube.ErrLoginRequired):
		kind = FetchAuthRequired
	case errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrNotPlayableInEmbed),
		errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength):
		kind = FetchPermanentUnavailable
	case errors.As(err, &statusErr):
		kind = FetchPermanentUnavailable
		if IsAuthMessage(statusErr.Reason) {
			kind = FetchAuthRequired
		}
	case errors.As(err, &codeErr):
		if int(codeErr) == http.StatusTooManyRequests || int(codeErr) >= http.StatusInternalServerError {
			kind = FetchTransient
		}
	case IsUnavailableMessage(err.Error()):
		kind = FetchPermanentUnavailable
	case IsAuthMessage(err.Error()):
		kind = FetchAuthRequired
	case isTransientError(err) || IsTransientMessage(err.Error()):
		kind = FetchTransient
	}
	return NewFetchError(kind, videoID, err)
}

func kindForStreamError(err error) FetchKind {
	if isTransientError(err) || IsTransientMessage(err.Error()) {
		return FetchTransient
	}
	var codeErr youtube.ErrUnexpectedStatusCode
	if errors.As(err, &codeErr) && (int(codeErr) == http.StatusTooManyRequests || int(codeErr) >= http.StatusInternalServerError) {
		return FetchTransient
	}
	return FetchUnknown
}

// writePartial streams r into dest+".part" and renames it to dest once complete.
//
// A short body is reported as a transient error and the partial file is removed.
func writePartial(ctx context.Context, dest string, r io.Reader, expected int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	part := dest + partSuffix
	file, err := os.Create(part)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", part, err)
	}

	written, err := io.Copy(file, &contextReader{ctx: ctx, r: r})
	if err == nil && expected > 0 && written != expected {
		err = NewFetchError(FetchTransient, filepath.Base(dest),
			fmt.Errorf("%w: got %d of %d bytes", io.ErrUnexpectedEOF, written, expected))
	}
	if err == nil {
		err = file.Sync()
	}
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(part)
		return written, err
	}

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return written, fmt.Errorf("failed to finalize %s: %w", dest, err)
	}
	return written, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

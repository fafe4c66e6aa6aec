package tasks

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/ytpull/internal/models"
)

const (
	maxTitleBytes = 200
	fallbackTitle = "video"
	forbidden     = `<>:"/\|?*`
)

// SanitizeTitle makes title safe as a file name on every common filesystem.
//
// Reserved characters, control characters and invalid UTF-8 become "_". Leading and trailing
// spaces and dots are trimmed and the result is capped at 200 bytes without splitting a rune.
// An empty result becomes "video".
func SanitizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	for i, w := 0, 0; i < len(title); i += w {
		r, size := utf8.DecodeRuneInString(title[i:])
		w = size
		switch {
		case r == utf8.RuneError && size == 1:
			b.WriteByte('_')
		case r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		case strings.ContainsRune(forbidden, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}

	s := strings.Trim(b.String(), " .")
	if len(s) > maxTitleBytes {
		cut := maxTitleBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = strings.TrimRight(s[:cut], " .")
	}
	if s == "" {
		return fallbackTitle
	}
	return s
}

// Container extensions for video and audio-only downloads.
const (
	ExtVideo = ".mp4"
	ExtAudio = ".m4a"
)

// Extension returns the container extension for the download mode.
func Extension(audioOnly bool) string {
	if audioOnly {
		return ExtAudio
	}
	return ExtVideo
}

// FileName is the destination file name for entry: the 1-based position padded to four
// digits, then the sanitized title and ext.
func FileName(entry models.VideoEntry, ext string) string {
	return fmt.Sprintf("%04d - %s%s", entry.Position+1, SanitizeTitle(entry.Title), ext)
}

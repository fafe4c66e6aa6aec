// package formatter renders run summaries as reports (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/shared"
)

// Format names a report encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// ParseFormat accepts a format name or common alias. An empty name is inferred from the path extension.
func ParseFormat(name, path string) (Format, error) {
	if name == "" {
		name = strings.TrimPrefix(filepath.Ext(path), ".")
	}

	switch strings.ToLower(name) {
	case "json", "":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, name)
	}
}

// SummaryToJSON encodes the full summary, outcomes included.
func SummaryToJSON(summary *models.RunSummary) ([]byte, error) {
	return shared.MarshalJSON(summary, true)
}

// SummaryToCSV converts outcomes to CSV with columns: Position, ID, Title, Outcome, Detail, Attempts, Elapsed
func SummaryToCSV(summary *models.RunSummary) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Title", "Outcome", "Detail", "Attempts", "Elapsed"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, o := range summary.Outcomes {
		record := []string{
			strconv.Itoa(o.Entry.Position + 1),
			o.Entry.ID,
			o.Entry.Title,
			o.Kind.String(),
			o.Detail(),
			strconv.Itoa(o.Attempts),
			o.Elapsed.Round(time.Millisecond).String(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// SummaryToMarkdown renders counts followed by one section per outcome kind.
func SummaryToMarkdown(summary *models.RunSummary) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Run %s\n\n", summary.RunID))
	buf.WriteString(fmt.Sprintf("**Playlist**: %s\n", summary.PlaylistID))
	buf.WriteString(fmt.Sprintf("**Started**: %s\n", summary.StartedAt.Format(time.RFC3339)))
	if d := summary.Duration(); d > 0 {
		buf.WriteString(fmt.Sprintf("**Duration**: %s\n", d.Round(time.Second)))
	}
	if summary.Cancelled {
		buf.WriteString(fmt.Sprintf("**Cancelled**: yes, %d remaining\n", summary.Remaining))
	}
	buf.WriteString("\n")

	buf.WriteString("| Succeeded | Skipped | Failed | Unavailable |\n")
	buf.WriteString("|---|---|---|---|\n")
	buf.WriteString(fmt.Sprintf("| %d | %d | %d | %d |\n", summary.Succeeded, summary.Skipped, summary.Failed, summary.Unavailable))

	for _, kind := range []models.OutcomeKind{models.OutcomeFailed, models.OutcomeUnavailable, models.OutcomeSuccess, models.OutcomeSkipped} {
		outcomes := summary.ByKind(kind)
		if len(outcomes) == 0 {
			continue
		}

		buf.WriteString(fmt.Sprintf("\n## %s\n\n", sectionTitle(kind)))
		for _, o := range outcomes {
			buf.WriteString(fmt.Sprintf("- %04d [%s](%s)", o.Entry.Position+1, escapeMarkdown(o.Entry.Title), o.Entry.WatchURL()))
			if detail := o.Detail(); detail != "" {
				buf.WriteString(fmt.Sprintf(": %s", detail))
			}
			buf.WriteString("\n")
		}
	}

	return buf.Bytes(), nil
}

// SummaryToText converts a summary to plain text format
func SummaryToText(summary *models.RunSummary) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Run: %s\n", summary.RunID))
	buf.WriteString(fmt.Sprintf("Playlist: %s\n", summary.PlaylistID))
	buf.WriteString(fmt.Sprintf("Succeeded: %d  Skipped: %d  Failed: %d  Unavailable: %d\n",
		summary.Succeeded, summary.Skipped, summary.Failed, summary.Unavailable))
	if summary.Cancelled {
		buf.WriteString(fmt.Sprintf("Cancelled with %d remaining\n", summary.Remaining))
	}
	buf.WriteString("\n")

	for _, o := range summary.Outcomes {
		buf.WriteString(fmt.Sprintf("%-11s %04d %s", o.Kind, o.Entry.Position+1, o.Entry.Title))
		if detail := o.Detail(); detail != "" {
			buf.WriteString(" - " + detail)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// PlaylistsToText renders one playlist per line for list-playlists.
func PlaylistsToText(playlists []models.PlaylistInfo) []byte {
	var buf bytes.Buffer
	for _, p := range playlists {
		buf.WriteString(fmt.Sprintf("%-36s %5d  %s\n", p.ID, p.ItemCount, p.Title))
	}
	return buf.Bytes()
}

// Render encodes the summary in the given format.
func Render(summary *models.RunSummary, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return SummaryToJSON(summary)
	case FormatCSV:
		return SummaryToCSV(summary)
	case FormatMarkdown:
		return SummaryToMarkdown(summary)
	case FormatText:
		return SummaryToText(summary)
	default:
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteSummary writes a report for the run.
//
// Defaults to {run id}.{ext} in the working directory when path is empty.
func WriteSummary(summary *models.RunSummary, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s.%s", summary.RunID, extension(format))
	}

	data, err := Render(summary, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func extension(format Format) string {
	if format == FormatMarkdown {
		return "md"
	}
	return string(format)
}

func sectionTitle(kind models.OutcomeKind) string {
	switch kind {
	case models.OutcomeSuccess:
		return "Downloaded"
	case models.OutcomeSkipped:
		return "Skipped"
	case models.OutcomeFailed:
		return "Failed"
	default:
		return "Unavailable"
	}
}

var markdownEscaper = strings.NewReplacer("[", `\[`, "]", `\]`, "*", `\*`, "_", `\_`, "`", "\\`")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/shared"
	tu "github.com/desertthunder/ytpull/internal/testing"
)

func testSummary() *models.RunSummary {
	started := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	s := models.NewRunSummary("run-abc", "WL", started)

	ok := models.Succeeded(models.VideoEntry{ID: "v2", Title: "Second [live]", Position: 1}, "/out/0002 - Second.mp4", 1024, 1)
	ok.Elapsed = 2 * time.Second
	s.Add(ok)
	s.Add(models.Skipped(models.VideoEntry{ID: "v1", Title: "First", Position: 0}, "already downloaded"))
	s.Add(models.Failed(models.VideoEntry{ID: "v3", Title: "Third, with comma", Position: 2}, "transient", 3, "timeout"))
	s.Add(models.Unavailable(models.VideoEntry{ID: "v4", Title: "Fourth", Position: 3}, "private video", 1))
	s.FinishedAt = started.Add(90 * time.Second)
	return s
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    Format
		wantErr bool
	}{
		{name: "csv", want: FormatCSV},
		{name: "md", want: FormatMarkdown},
		{name: "TEXT", want: FormatText},
		{path: "report.md", want: FormatMarkdown},
		{path: "report.csv", want: FormatCSV},
		{path: "report", want: FormatJSON},
		{name: "xml", wantErr: true},
		{path: "report.xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name+tt.path, func(t *testing.T) {
			got, err := ParseFormat(tt.name, tt.path)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFormat() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRenderers(t *testing.T) {
	summary := testSummary()

	t.Run("SummaryToCSV", func(t *testing.T) {
		data, err := SummaryToCSV(summary)
		if err != nil {
			t.Fatalf("SummaryToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Position,ID,Title,Outcome,Detail,Attempts,Elapsed") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "2,v2,Second [live],success,/out/0002 - Second.mp4,1,2s") {
			t.Errorf("CSV missing success row, got: %s", output)
		}
		if !strings.Contains(output, `"Third, with comma"`) {
			t.Errorf("CSV should quote titles with commas")
		}

		lines := strings.Split(strings.TrimSpace(output), "\n")
		if len(lines) != 5 {
			t.Errorf("expected header plus 4 rows, got %d", len(lines))
		}
	})

	t.Run("SummaryToMarkdown", func(t *testing.T) {
		data, err := SummaryToMarkdown(summary)
		if err != nil {
			t.Fatalf("SummaryToMarkdown failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "# Run run-abc") {
			t.Errorf("Markdown missing title")
		}
		if !strings.Contains(output, "| 1 | 1 | 1 | 1 |") {
			t.Errorf("Markdown missing counts, got: %s", output)
		}
		if !strings.Contains(output, "**Duration**: 1m30s") {
			t.Errorf("Markdown missing duration")
		}
		if strings.Index(output, "## Failed") > strings.Index(output, "## Downloaded") {
			t.Errorf("failures should be listed first")
		}
		if !strings.Contains(output, `[Second \[live\]](https://www.youtube.com/watch?v=v2)`) {
			t.Errorf("Markdown should escape link text, got: %s", output)
		}
		if !strings.Contains(output, "transient after 3 attempt(s): timeout") {
			t.Errorf("Markdown missing failure detail")
		}
		if strings.Contains(output, "Cancelled") {
			t.Errorf("completed run should not be marked cancelled")
		}
	})

	t.Run("SummaryToText", func(t *testing.T) {
		cancelled := testSummary()
		cancelled.Cancelled = true
		cancelled.Remaining = 7

		data, err := SummaryToText(cancelled)
		if err != nil {
			t.Fatalf("SummaryToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Succeeded: 1  Skipped: 1  Failed: 1  Unavailable: 1") {
			t.Errorf("Text missing counts, got: %s", output)
		}
		if !strings.Contains(output, "Cancelled with 7 remaining") {
			t.Errorf("Text missing cancellation")
		}
		if !strings.Contains(output, "0004 Fourth - private video") {
			t.Errorf("Text missing unavailable entry")
		}
	})

	t.Run("SummaryToJSON", func(t *testing.T) {
		data, err := SummaryToJSON(summary)
		if err != nil {
			t.Fatalf("SummaryToJSON failed: %v", err)
		}

		var decoded models.RunSummary
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Failed != 1 || len(decoded.Outcomes) != 4 {
			t.Errorf("unexpected decoded summary: %+v", decoded)
		}
		if decoded.Outcomes[2].Kind != models.OutcomeFailed {
			t.Errorf("expected kind to survive encoding, got %s", decoded.Outcomes[2].Kind)
		}
	})

	t.Run("PlaylistsToText", func(t *testing.T) {
		out := string(PlaylistsToText([]models.PlaylistInfo{
			{ID: "PL1", Title: "Music", ItemCount: 12},
			{ID: "WL", Title: "Watch later", ItemCount: 3},
		}))
		if strings.Count(out, "\n") != 2 {
			t.Errorf("expected 2 lines, got: %q", out)
		}
		if !strings.Contains(out, "Music") || !strings.Contains(out, "12") {
			t.Errorf("missing playlist fields: %q", out)
		}
	})
}

func TestWriteSummary(t *testing.T) {
	summary := testSummary()

	t.Run("WithCustomPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports", "run.csv")

		got, err := WriteSummary(summary, FormatCSV, path)
		if err != nil {
			t.Fatalf("WriteSummary failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}

		tu.AssertFileExists(t, path)
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "v3") {
			t.Errorf("report missing failed entry")
		}
	})

	t.Run("WithDefaultPath", func(t *testing.T) {
		t.Chdir(t.TempDir())

		got, err := WriteSummary(summary, FormatMarkdown, "")
		if err != nil {
			t.Fatalf("WriteSummary failed: %v", err)
		}
		if got != "run-abc.md" {
			t.Errorf("expected run-abc.md, got %s", got)
		}
		tu.AssertFileExists(t, got)
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		if _, err := WriteSummary(summary, Format("xml"), filepath.Join(t.TempDir(), "x")); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

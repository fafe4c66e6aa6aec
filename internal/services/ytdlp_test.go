package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/ytpull/internal/models"
)

func TestFormatSelector(t *testing.T) {
	c := models.ResolutionConstraint{Min: models.Q720, Max: models.Q1080, Preferred: models.Q1080}
	want := "bv*[height>=720][height<=1080]+ba/b[height>=720][height<=1080]"
	if got := formatSelector(c); got != want {
		t.Errorf("formatSelector() = %q, want %q", got, want)
	}
}

func TestOutputTemplate(t *testing.T) {
	if got := outputTemplate("/tmp/0001 - 100% real"); got != "/tmp/0001 - 100%% real.%(ext)s" {
		t.Errorf("outputTemplate() = %q", got)
	}
}

func TestFinalizeOutput(t *testing.T) {
	t.Run("Already at destination", func(t *testing.T) {
		dir := t.TempDir()
		dest := filepath.Join(dir, "0001 - a.mp4")
		os.WriteFile(dest, []byte("x"), 0o644)

		got, err := finalizeOutput(filepath.Join(dir, "0001 - a"), dest, "")
		if err != nil || got != dest {
			t.Errorf("finalizeOutput() = %q, %v", got, err)
		}
	})

	t.Run("Printed path wins", func(t *testing.T) {
		dir := t.TempDir()
		base := filepath.Join(dir, "0001 - a")
		os.WriteFile(base+".webm", []byte("x"), 0o644)

		got, err := finalizeOutput(base, base+".mp4", base+".webm")
		if err != nil || got != base+".webm" {
			t.Errorf("finalizeOutput() = %q, %v", got, err)
		}
	})

	t.Run("Other extension is kept", func(t *testing.T) {
		dir := t.TempDir()
		base := filepath.Join(dir, "0002 - b [live]")
		os.WriteFile(base+".m4a", []byte("audio"), 0o644)
		os.WriteFile(base+".m4a.part", []byte("junk"), 0o644)

		got, err := finalizeOutput(base, base+".mp4", "")
		if err != nil {
			t.Fatalf("finalizeOutput() error = %v", err)
		}
		if got != base+".m4a" {
			t.Errorf("expected %s, got %s", base+".m4a", got)
		}
		if _, err := os.Stat(base + ".mp4"); !os.IsNotExist(err) {
			t.Error("audio must not be renamed onto an mp4 name")
		}
	})

	t.Run("Nothing written", func(t *testing.T) {
		dir := t.TempDir()
		if _, err := finalizeOutput(filepath.Join(dir, "none"), filepath.Join(dir, "none.mp4"), ""); err == nil {
			t.Error("expected error when no output exists")
		}
	})
}

func TestParsePrinted(t *testing.T) {
	tests := []struct {
		name     string
		stdout   string
		wantQ    models.Quality
		wantPath string
	}{
		{"video", "720\n/out/0001 - a.mp4", models.Q720, "/out/0001 - a.mp4"},
		{"below preferred", "[info] noise\n480\n/out/0002 - b.mp4\n", models.Q480, "/out/0002 - b.mp4"},
		{"audio has no height", "NA\n/out/0003 - c.m4a", 0, "/out/0003 - c.m4a"},
		{"nothing printed", "", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, path := parsePrinted(tt.stdout)
			if q != tt.wantQ || path != tt.wantPath {
				t.Errorf("parsePrinted() = %v, %q, want %v, %q", q, path, tt.wantQ, tt.wantPath)
			}
		})
	}
}

func TestClassifyYtdlpOutput(t *testing.T) {
	tests := []struct {
		output string
		want   FetchKind
	}{
		{"ERROR: [youtube] abc: Requested format is not available. Use --list-formats", FetchNoAcceptableStream},
		{"ERROR: [youtube] abc: Private video. Sign in if you've been granted access", FetchPermanentUnavailable},
		{"ERROR: [youtube] abc: Video unavailable", FetchPermanentUnavailable},
		{"ERROR: [youtube] abc: Sign in to confirm you're not a bot. Use --cookies-from-browser or --cookies for the authentication.", FetchAuthRequired},
		{"ERROR: [youtube] abc: Sign in to confirm your age. This video may be inappropriate for some users.", FetchAuthRequired},
		{"ERROR: [youtube] abc: Premieres in 2 hours", FetchAuthRequired},
		{"ERROR: [youtube] abc: The uploader has not made this video available in your country", FetchPermanentUnavailable},
		{"ERROR: unable to download video data: HTTP Error 503: Service Unavailable", FetchTransient},
		{"ERROR: something odd", FetchUnknown},
	}

	for _, tt := range tests {
		if got := classifyYtdlpOutput(tt.output); got != tt.want {
			t.Errorf("classifyYtdlpOutput(%q) = %s, want %s", tt.output, got, tt.want)
		}
	}
}

func TestLastLine(t *testing.T) {
	out := "[youtube] abc: Downloading webpage\nERROR: first\nWARNING: noise\nERROR: last\n"
	if got := lastLine(out, "fallback"); got != "ERROR: last" {
		t.Errorf("lastLine() = %q", got)
	}
	if got := lastLine("no errors here", "fallback"); got != "fallback" {
		t.Errorf("lastLine() = %q", got)
	}
}

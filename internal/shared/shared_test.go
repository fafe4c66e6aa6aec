package shared

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	b, _ := GenerateState()

	if len(a) != 32 {
		t.Errorf("expected 32 hex characters, got %d", len(a))
	}
	if a == b {
		t.Error("expected distinct state tokens")
	}
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	if len(id) != 36 || strings.Count(id, "-") != 4 {
		t.Errorf("GenerateID() = %q, want a uuid", id)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	t.Run("creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a", "b", "ledger.json")

		if err := WriteFileAtomic(path, []byte(`{"v":1}`), 0644); err != nil {
			t.Fatalf("WriteFileAtomic() error = %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(data) != `{"v":1}` {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("replaces content and leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "state.json")

		for _, content := range []string{"first", "second"} {
			if err := WriteFileAtomic(path, []byte(content), 0600); err != nil {
				t.Fatalf("WriteFileAtomic() error = %v", err)
			}
		}

		data, _ := os.ReadFile(path)
		if string(data) != "second" {
			t.Errorf("expected latest content, got %q", data)
		}

		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Errorf("expected only the target file, found %d entries", len(entries))
		}
	})
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{in: "~/token.json", want: filepath.Join(home, "token.json")},
		{in: "./token.json", want: "./token.json"},
		{in: "~", want: "~"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ExpandPath(tt.in); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBrowserCommand(t *testing.T) {
	t.Setenv("BROWSER", "")

	tests := []struct {
		goos    string
		want    string
		wantErr bool
	}{
		{goos: "darwin", want: "open"},
		{goos: "linux", want: "xdg-open"},
		{goos: "windows", want: "rundll32"},
		{goos: "plan9", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			cmd, err := browserCommand(tt.goos, "https://example.com")
			if tt.wantErr {
				if err == nil {
					t.Error("expected error for unsupported platform")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if filepath.Base(cmd.Path) != tt.want && cmd.Args[0] != tt.want {
				t.Errorf("expected %s, got %v", tt.want, cmd.Args)
			}
		})
	}

	t.Run("BROWSER override", func(t *testing.T) {
		t.Setenv("BROWSER", "firefox")
		cmd, err := browserCommand("linux", "https://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cmd.Args[0] != "firefox" {
			t.Errorf("expected firefox, got %v", cmd.Args)
		}
	})
}

package models

import (
	"encoding/json"
	"testing"
)

func TestParseQuality(t *testing.T) {
	tests := []struct {
		in      string
		want    Quality
		wantErr bool
	}{
		{in: "720p", want: Q720},
		{in: "1080", want: Q1080},
		{in: " 1440P ", want: Q1440},
		{in: "1080p60", want: Q1080},
		{in: "4k", want: Q2160},
		{in: "HD", want: Q720},
		{in: "", wantErr: true},
		{in: "p", wantErr: true},
		{in: "-720p", wantErr: true},
		{in: "best", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuality(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseQuality(%q) expected error, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseQuality(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseQuality(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestQualityFromLabel(t *testing.T) {
	tests := map[string]Quality{
		"720p60":      Q720,
		"1080p HDR":   Q1080,
		"":            0,
		"tiny":        0,
		"2160p60 HDR": Q2160,
	}
	for label, want := range tests {
		if got := QualityFromLabel(label); got != want {
			t.Errorf("QualityFromLabel(%q) = %v, want %v", label, got, want)
		}
	}
}

func TestResolutionConstraint(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name    string
			c       ResolutionConstraint
			wantErr bool
		}{
			{name: "ordered", c: ResolutionConstraint{Min: Q720, Max: Q1080, Preferred: Q720}},
			{name: "all equal", c: ResolutionConstraint{Min: Q1080, Max: Q1080, Preferred: Q1080}},
			{name: "preferred below min", c: ResolutionConstraint{Min: Q720, Max: Q1080, Preferred: Q480}, wantErr: true},
			{name: "preferred above max", c: ResolutionConstraint{Min: Q720, Max: Q1080, Preferred: Q1440}, wantErr: true},
			{name: "min above max", c: ResolutionConstraint{Min: Q1080, Max: Q720, Preferred: Q1080}, wantErr: true},
			{name: "zero", c: ResolutionConstraint{}, wantErr: true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.c.Validate()
				if (err != nil) != tt.wantErr {
					t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("Select", func(t *testing.T) {
		tests := []struct {
			name       string
			c          ResolutionConstraint
			candidates []Quality
			want       Quality
			wantOK     bool
		}{
			{
				name:       "preferred at minimum",
				c:          ResolutionConstraint{Min: Q720, Max: Q1080, Preferred: Q720},
				candidates: []Quality{Q480, Q720, Q1080, Q1440},
				want:       Q720,
				wantOK:     true,
			},
			{
				name:       "preferred at maximum",
				c:          ResolutionConstraint{Min: Q720, Max: Q1080, Preferred: Q1080},
				candidates: []Quality{Q480, Q720, Q1080, Q1440},
				want:       Q1080,
				wantOK:     true,
			},
			{
				name:       "tie goes to the lower quality",
				c:          ResolutionConstraint{Min: Q480, Max: Q1080, Preferred: 600},
				candidates: []Quality{Q720, Q480},
				want:       Q480,
				wantOK:     true,
			},
			{
				name:       "closest when preferred missing",
				c:          ResolutionConstraint{Min: Q360, Max: Q1440, Preferred: Q1080},
				candidates: []Quality{Q360, Q480, Q1440},
				want:       Q1440,
				wantOK:     true,
			},
			{
				name:       "equidistant neighbours go lower",
				c:          ResolutionConstraint{Min: Q360, Max: Q1440, Preferred: Q1080},
				candidates: []Quality{Q360, Q720, Q1440},
				want:       Q720,
				wantOK:     true,
			},
			{
				name:       "nothing in range",
				c:          ResolutionConstraint{Min: Q720, Max: Q1080, Preferred: Q720},
				candidates: []Quality{Q360, Q480, Q1440, Q2160},
				wantOK:     false,
			},
			{
				name:   "no candidates",
				c:      ResolutionConstraint{Min: Q720, Max: Q1080, Preferred: Q720},
				wantOK: false,
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, ok := tt.c.Select(tt.candidates)
				if ok != tt.wantOK {
					t.Fatalf("Select() ok = %v, want %v", ok, tt.wantOK)
				}
				if ok && got != tt.want {
					t.Errorf("Select() = %v, want %v", got, tt.want)
				}
				if ok && !tt.c.Accepts(got) {
					t.Errorf("Select() returned %v outside %s", got, tt.c)
				}
			})
		}
	})

	t.Run("NewResolutionConstraint", func(t *testing.T) {
		c, err := NewResolutionConstraint("720p", "1080p", "1080p")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Min != Q720 || c.Max != Q1080 || c.Preferred != Q1080 {
			t.Errorf("unexpected constraint %+v", c)
		}
		if _, err := NewResolutionConstraint("1080p", "720p", "720p"); err == nil {
			t.Error("expected error for inverted range")
		}
		if _, err := NewResolutionConstraint("x", "720p", "720p"); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("JSON uses tier labels", func(t *testing.T) {
		c := ResolutionConstraint{Min: Q720, Max: Q1080, Preferred: Q720}
		data, err := json.Marshal(c)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != `{"min":"720p","max":"1080p","preferred":"720p"}` {
			t.Errorf("unexpected JSON %s", data)
		}
	})
}

package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Quality is a video quality tier expressed as vertical resolution in pixels.
//
// The zero value means "unknown".
type Quality int

const (
	Q144  Quality = 144
	Q240  Quality = 240
	Q360  Quality = 360
	Q480  Quality = 480
	Q720  Quality = 720
	Q1080 Quality = 1080
	Q1440 Quality = 1440
	Q2160 Quality = 2160
	Q4320 Quality = 4320
)

// Tiers lists the known tiers in ascending order.
var Tiers = []Quality{Q144, Q240, Q360, Q480, Q720, Q1080, Q1440, Q2160, Q4320}

var qualityAliases = map[string]Quality{
	"sd":  Q480,
	"hd":  Q720,
	"fhd": Q1080,
	"2k":  Q1440,
	"qhd": Q1440,
	"4k":  Q2160,
	"uhd": Q2160,
	"8k":  Q4320,
}

// ParseQuality parses tiers such as "720p", "1080", "4k" or "1080p60".
func ParseQuality(s string) (Quality, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if q, ok := qualityAliases[v]; ok {
		return q, nil
	}

	if i := strings.IndexByte(v, 'p'); i > 0 {
		v = v[:i]
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid quality %q", s)
	}
	return Quality(n), nil
}

// QualityFromLabel parses a stream label like "720p60" or "1080p HDR", returning 0 when unknown.
func QualityFromLabel(label string) Quality {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0
	}
	if f := strings.Fields(label); len(f) > 0 {
		label = f[0]
	}
	q, err := ParseQuality(label)
	if err != nil {
		return 0
	}
	return q
}

func (q Quality) String() string {
	if q <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%dp", int(q))
}

// MarshalText encodes the tier as "720p".
func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText accepts anything [ParseQuality] accepts.
func (q *Quality) UnmarshalText(b []byte) error {
	if string(b) == "unknown" || len(b) == 0 {
		*q = 0
		return nil
	}
	v, err := ParseQuality(string(b))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// ResolutionConstraint bounds the acceptable stream quality for a run.
type ResolutionConstraint struct {
	Min       Quality `json:"min"`
	Max       Quality `json:"max"`
	Preferred Quality `json:"preferred"`
}

// NewResolutionConstraint parses and validates the three tiers.
func NewResolutionConstraint(min, max, preferred string) (ResolutionConstraint, error) {
	var c ResolutionConstraint
	var err error
	if c.Min, err = ParseQuality(min); err != nil {
		return c, fmt.Errorf("minimum: %w", err)
	}
	if c.Max, err = ParseQuality(max); err != nil {
		return c, fmt.Errorf("maximum: %w", err)
	}
	if c.Preferred, err = ParseQuality(preferred); err != nil {
		return c, fmt.Errorf("preferred: %w", err)
	}
	return c, c.Validate()
}

// Validate enforces min <= preferred <= max.
func (c ResolutionConstraint) Validate() error {
	if c.Min <= 0 || c.Max <= 0 || c.Preferred <= 0 {
		return fmt.Errorf("resolution tiers must be positive: %s", c)
	}
	if c.Min > c.Preferred || c.Preferred > c.Max {
		return fmt.Errorf("resolution must satisfy min <= preferred <= max: %s", c)
	}
	return nil
}

// Accepts reports whether q lies inside [Min, Max].
func (c ResolutionConstraint) Accepts(q Quality) bool {
	return q >= c.Min && q <= c.Max
}

// Select picks the acceptable candidate closest to Preferred. Ties go to the lower quality.
func (c ResolutionConstraint) Select(candidates []Quality) (Quality, bool) {
	var best Quality
	found := false
	for _, q := range candidates {
		if !c.Accepts(q) {
			continue
		}
		if !found || closer(q, best, c.Preferred) {
			best, found = q, true
		}
	}
	return best, found
}

// closer reports whether a is a better pick than b for target.
func closer(a, b, target Quality) bool {
	da, db := distance(a, target), distance(b, target)
	if da != db {
		return da < db
	}
	return a < b
}

func distance(a, b Quality) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func (c ResolutionConstraint) String() string {
	return fmt.Sprintf("%s..%s (prefer %s)", c.Min, c.Max, c.Preferred)
}

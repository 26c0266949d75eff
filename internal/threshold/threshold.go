// Package threshold classifies KPI metric values into color-coded severity
// buckets using per-field {high, low} percentage thresholds.
package threshold

import (
	"fmt"
	"sort"
	"strings"
)

// Field names a project metric that can be color-coded.
type Field string

// The six metric fields that carry thresholds.
const (
	InlinePassRate          Field = "inlinePassRate"
	ElecPassRate            Field = "elecPassRate"
	IssueResponseIndex      Field = "issueResponseIndex"
	WIPAchievementRate      Field = "wipAchievementRate"
	DeadlineAchievementRate Field = "deadlineAchievementRate"
	FinalScore              Field = "finalScore"
)

// Fields returns the metric fields in grid display order.
func Fields() []Field {
	return []Field{
		InlinePassRate,
		ElecPassRate,
		IssueResponseIndex,
		WIPAchievementRate,
		DeadlineAchievementRate,
		FinalScore,
	}
}

// Bucket is a severity classification. The zero value is BucketNone, the
// neutral result for a field with no configured thresholds.
type Bucket string

const (
	BucketNone   Bucket = ""
	BucketLow    Bucket = "low"
	BucketMedium Bucket = "medium"
	BucketHigh   Bucket = "high"
)

// Rank orders buckets by severity: None < Low < Medium < High.
func (b Bucket) Rank() int {
	switch b {
	case BucketLow:
		return 1
	case BucketMedium:
		return 2
	case BucketHigh:
		return 3
	default:
		return 0
	}
}

// Color returns the display color for a bucket.
func (b Bucket) Color() string {
	switch b {
	case BucketHigh:
		return "#52c41a"
	case BucketMedium:
		return "#faad14"
	case BucketLow:
		return "#ff4d4f"
	default:
		return ""
	}
}

// Range is a {high, low} threshold pair, both percentages in [0,100].
type Range struct {
	High float64 `yaml:"high" json:"high"`
	Low  float64 `yaml:"low" json:"low"`
}

// Settings maps each metric field to its threshold pair.
type Settings map[Field]Range

// Clone returns an independent copy of s.
func (s Settings) Clone() Settings {
	if s == nil {
		return nil
	}
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Default returns the built-in thresholds used when nothing is configured.
func Default() Settings {
	s := make(Settings, 6)
	for _, f := range Fields() {
		s[f] = Range{High: 90, Low: 70}
	}
	s[FinalScore] = Range{High: 85, Low: 60}
	return s
}

// Classify maps a fractional metric value in [0,1] to a bucket. Thresholds
// are percentages and are scaled down before comparison. A field with no
// thresholds classifies as BucketNone.
func Classify(field Field, value float64, s Settings) Bucket {
	r, ok := s[field]
	if !ok {
		return BucketNone
	}
	switch {
	case value >= r.High/100:
		return BucketHigh
	case value >= r.Low/100:
		return BucketMedium
	default:
		return BucketLow
	}
}

// IsKnown reports whether f is one of the six metric fields.
func IsKnown(f Field) bool {
	for _, known := range Fields() {
		if f == known {
			return true
		}
	}
	return false
}

// Validate checks that s is a complete replacement: every metric field is
// present, no unknown fields appear, and every bound lies in [0,100].
// High >= Low is not enforced.
func Validate(s Settings) error {
	var errs []string
	for _, f := range Fields() {
		r, ok := s[f]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s is required", f))
			continue
		}
		if r.High < 0 || r.High > 100 {
			errs = append(errs, fmt.Sprintf("%s.high must be within 0-100, got %g", f, r.High))
		}
		if r.Low < 0 || r.Low > 100 {
			errs = append(errs, fmt.Sprintf("%s.low must be within 0-100, got %g", f, r.Low))
		}
	}
	var unknown []string
	for f := range s {
		if !IsKnown(f) {
			unknown = append(unknown, string(f))
		}
	}
	sort.Strings(unknown)
	for _, f := range unknown {
		errs = append(errs, fmt.Sprintf("unknown field %q", f))
	}
	if len(errs) > 0 {
		return fmt.Errorf("threshold: invalid settings: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Inverted returns the fields whose low bound exceeds the high bound. Such
// settings are accepted but never produce BucketMedium.
func Inverted(s Settings) []Field {
	var out []Field
	for _, f := range Fields() {
		if r, ok := s[f]; ok && r.Low > r.High {
			out = append(out, f)
		}
	}
	return out
}

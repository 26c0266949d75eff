// Package timeline lays issues out on a shared day axis for a Gantt-style
// view. Layout is a pure function of its items and options; "today" is
// always injected.
package timeline

import (
	"strings"
	"time"

	"github.com/zulandar/kpiboard/internal/models"
)

// Mode selects how the axis window is placed.
type Mode string

const (
	// ModeData fits the axis to the data extent.
	ModeData Mode = "data"
	// ModeToday centers the axis on today while still covering every item.
	ModeToday Mode = "today"
)

// Tone is the color class of a bar.
type Tone string

const (
	ToneUndetermined       Tone = "undetermined"
	ToneCompleted          Tone = "completed"
	ToneCompletedThisMonth Tone = "completed_this_month"
	ToneInProgress         Tone = "in_progress"
)

// Color returns the display color for a tone.
func (t Tone) Color() string {
	switch t {
	case ToneCompleted:
		return "#8c8c8c"
	case ToneCompletedThisMonth:
		return "#52c41a"
	case ToneInProgress:
		return "#1677ff"
	default:
		return "#d9d9d9"
	}
}

// Options controls axis sizing and geometry.
type Options struct {
	Today       time.Time
	Mode        Mode
	MinSpanDays int     // minimum axis span in whole days
	OpenEndDays int     // synthetic duration of items without an end date
	DayWidth    float64 // pixels per day
	MinBarWidth float64 // pixels
}

// DefaultOptions returns the standard options for the given day.
func DefaultOptions(today time.Time) Options {
	return Options{
		Today:       today,
		Mode:        ModeData,
		MinSpanDays: 30,
		OpenEndDays: 30,
		DayWidth:    24,
		MinBarWidth: 2,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions(o.Today)
	if o.Mode == "" {
		o.Mode = d.Mode
	}
	if o.MinSpanDays <= 0 {
		o.MinSpanDays = d.MinSpanDays
	}
	if o.OpenEndDays <= 0 {
		o.OpenEndDays = d.OpenEndDays
	}
	if o.DayWidth <= 0 {
		o.DayWidth = d.DayWidth
	}
	if o.MinBarWidth <= 0 {
		o.MinBarWidth = d.MinBarWidth
	}
	return o
}

// Item is a dated entry to place on the axis. Start and End are YYYY-MM-DD.
type Item struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Status string `json:"status"`
}

// FromIssues converts issues into timeline items, preserving order.
func FromIssues(issues []models.Issue) []Item {
	items := make([]Item, 0, len(issues))
	for _, is := range issues {
		items = append(items, Item{ID: is.ID, Label: is.Title, Start: is.Start, End: is.End, Status: is.Status})
	}
	return items
}

// Bar is the geometry and color of one placed item.
type Bar struct {
	Item       Item    `json:"item"`
	Start      string  `json:"start"`
	End        string  `json:"end"` // effective end
	HasEndDate bool    `json:"hasEndDate"`
	X          float64 `json:"x"`
	Width      float64 `json:"width"`
	Tone       Tone    `json:"tone"`
	Color      string  `json:"color"`
}

// GridLine is a vertical marker on the axis.
type GridLine struct {
	Date string  `json:"date"`
	X    float64 `json:"x"`
}

// Result is a complete timeline layout.
type Result struct {
	AxisStart  string     `json:"axisStart"`
	AxisEnd    string     `json:"axisEnd"`
	Days       int        `json:"days"`  // axis span in whole days
	Width      float64    `json:"width"` // total pixels
	Bars       []Bar      `json:"bars"`
	WeekLines  []GridLine `json:"weekLines"`
	MonthLines []GridLine `json:"monthLines"`
	TodayX     *float64   `json:"todayX,omitempty"`
	Skipped    []string   `json:"skipped,omitempty"` // IDs of items without a usable start
}

// placed is an item with parsed dates.
type placed struct {
	item       Item
	start, end time.Time
	hasEnd     bool
}

// Layout computes the axis, bars and markers for items.
func Layout(items []Item, opts Options) Result {
	opts = opts.withDefaults()
	today := dateOf(opts.Today)

	var res Result
	var ps []placed
	for _, it := range items {
		start, ok := parseDate(it.Start)
		if !ok {
			res.Skipped = append(res.Skipped, it.ID)
			continue
		}
		p := placed{item: it, start: start}
		if end, ok := parseEnd(it.End); ok {
			p.end, p.hasEnd = end, true
		} else {
			p.end = start.AddDate(0, 0, opts.OpenEndDays)
		}
		ps = append(ps, p)
	}

	axisStart, axisEnd := axis(ps, today, opts)
	res.AxisStart = axisStart.Format(models.DateLayout)
	res.AxisEnd = axisEnd.Format(models.DateLayout)
	res.Days = days(axisStart, axisEnd)
	res.Width = float64(res.Days+1) * opts.DayWidth

	res.Bars = make([]Bar, 0, len(ps))
	for _, p := range ps {
		width := float64(days(p.start, p.end)+1) * opts.DayWidth
		if width < opts.MinBarWidth {
			width = opts.MinBarWidth
		}
		tone := toneFor(p, today)
		res.Bars = append(res.Bars, Bar{
			Item:       p.item,
			Start:      p.start.Format(models.DateLayout),
			End:        p.end.Format(models.DateLayout),
			HasEndDate: p.hasEnd,
			X:          float64(days(axisStart, p.start)) * opts.DayWidth,
			Width:      width,
			Tone:       tone,
			Color:      tone.Color(),
		})
	}

	for d := axisStart; !d.After(axisEnd); d = d.AddDate(0, 0, 1) {
		x := float64(days(axisStart, d)) * opts.DayWidth
		if d.Weekday() == time.Monday {
			res.WeekLines = append(res.WeekLines, GridLine{Date: d.Format(models.DateLayout), X: x})
		}
		if d.Day() == 1 {
			res.MonthLines = append(res.MonthLines, GridLine{Date: d.Format(models.DateLayout), X: x})
		}
	}

	if !today.Before(axisStart) && !today.After(axisEnd) {
		x := float64(days(axisStart, today)) * opts.DayWidth
		res.TodayX = &x
	}
	return res
}

// axis returns the inclusive axis window.
func axis(ps []placed, today time.Time, opts Options) (time.Time, time.Time) {
	if len(ps) == 0 {
		return expand(today, today, opts.MinSpanDays)
	}
	lo, hi := ps[0].start, ps[0].end
	for _, p := range ps {
		if p.start.Before(lo) {
			lo = p.start
		}
		if p.end.After(hi) {
			hi = p.end
		}
		// An end before its start still has to fit on the axis.
		if p.end.Before(lo) {
			lo = p.end
		}
	}
	if opts.Mode != ModeToday {
		return expand(lo, hi, opts.MinSpanDays)
	}
	half := (opts.MinSpanDays + 1) / 2
	if d := days(lo, today); d > half {
		half = d
	}
	if d := days(today, hi); d > half {
		half = d
	}
	return today.AddDate(0, 0, -half), today.AddDate(0, 0, half)
}

// expand widens [lo, hi] symmetrically to span at least minDays days.
func expand(lo, hi time.Time, minDays int) (time.Time, time.Time) {
	span := days(lo, hi)
	if span >= minDays {
		return lo, hi
	}
	extra := minDays - span
	before := extra / 2
	return lo.AddDate(0, 0, -before), hi.AddDate(0, 0, extra-before)
}

func toneFor(p placed, today time.Time) Tone {
	if !p.hasEnd {
		return ToneUndetermined
	}
	ey, em, _ := p.end.Date()
	ty, tm, _ := today.Date()
	switch {
	case ey < ty || (ey == ty && em < tm):
		return ToneCompleted
	case ey == ty && em == tm && p.end.Before(today):
		return ToneCompletedThisMonth
	default:
		return ToneInProgress
	}
}

// days returns the whole days from a to b. Both are UTC midnights. Unix
// seconds are used because a time.Duration saturates after about 292 years.
func days(a, b time.Time) int {
	return int((b.Unix() - a.Unix()) / 86400)
}

// dateOf truncates t to a UTC midnight on its calendar date.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseEnd parses an end date. Placeholders such as "undetermined" and
// unparsable values report false.
func parseEnd(s string) (time.Time, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", models.EndUndetermined, "tbd", "-":
		return time.Time{}, false
	}
	return parseDate(s)
}

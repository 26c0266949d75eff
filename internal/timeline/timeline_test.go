package timeline

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/zulandar/kpiboard/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestLayout_OpenEndedIsUndetermined(t *testing.T) {
	items := []Item{
		{ID: "a", Start: "2025-06-01", End: "2025-06-05"},
		{ID: "b", Start: "2025-06-03"},
	}
	for _, today := range []string{"2025-01-01", "2025-06-10", "2026-03-01"} {
		res := Layout(items, DefaultOptions(day(today)))
		b := res.Bars[1]
		if b.HasEndDate {
			t.Errorf("today=%s: open item HasEndDate = true", today)
		}
		if b.Tone != ToneUndetermined {
			t.Errorf("today=%s: open item tone = %s, want undetermined", today, b.Tone)
		}
	}
}

func TestLayout_Geometry(t *testing.T) {
	items := []Item{
		{ID: "a", Start: "2025-06-01", End: "2025-06-05"},
		{ID: "b", Start: "2025-06-03", End: models.EndUndetermined},
	}
	res := Layout(items, DefaultOptions(day("2025-06-10")))

	if res.AxisStart != "2025-06-01" || res.AxisEnd != "2025-07-03" {
		t.Errorf("axis = %s..%s, want 2025-06-01..2025-07-03", res.AxisStart, res.AxisEnd)
	}
	if res.Days != 32 || res.Width != 33*24 {
		t.Errorf("days/width = %d/%g", res.Days, res.Width)
	}
	want := []struct {
		x, width float64
		end      string
		tone     Tone
	}{
		{0, 5 * 24, "2025-06-05", ToneCompletedThisMonth},
		{2 * 24, 31 * 24, "2025-07-03", ToneUndetermined},
	}
	for i, w := range want {
		b := res.Bars[i]
		if b.X != w.x || b.Width != w.width || b.End != w.end || b.Tone != w.tone {
			t.Errorf("bar %d = %+v, want %+v", i, b, w)
		}
		if b.Color != w.tone.Color() {
			t.Errorf("bar %d color = %s", i, b.Color)
		}
	}
	if res.TodayX == nil || *res.TodayX != 9*24 {
		t.Errorf("TodayX = %v, want 216", res.TodayX)
	}
}

func TestLayout_GridLines(t *testing.T) {
	items := []Item{{ID: "a", Start: "2025-06-01", End: "2025-07-03"}}
	res := Layout(items, DefaultOptions(day("2025-06-10")))

	var weeks []string
	for _, g := range res.WeekLines {
		weeks = append(weeks, g.Date)
	}
	if diff := cmp.Diff([]string{"2025-06-02", "2025-06-09", "2025-06-16", "2025-06-23", "2025-06-30"}, weeks); diff != "" {
		t.Errorf("week lines mismatch (-want +got):\n%s", diff)
	}
	wantMonths := []GridLine{{Date: "2025-06-01", X: 0}, {Date: "2025-07-01", X: 30 * 24}}
	if diff := cmp.Diff(wantMonths, res.MonthLines); diff != "" {
		t.Errorf("month lines mismatch (-want +got):\n%s", diff)
	}
}

func TestLayout_MinimumSpan(t *testing.T) {
	items := []Item{{ID: "a", Start: "2025-06-10", End: "2025-06-12"}}
	res := Layout(items, DefaultOptions(day("2025-06-10")))
	if res.AxisStart != "2025-05-27" || res.AxisEnd != "2025-06-26" || res.Days != 30 {
		t.Errorf("axis = %s..%s (%d days)", res.AxisStart, res.AxisEnd, res.Days)
	}
}

func TestLayout_TodayModeCoversItems(t *testing.T) {
	items := []Item{{ID: "a", Start: "2025-01-01", End: "2025-01-05"}}
	opts := DefaultOptions(day("2025-01-20"))
	opts.Mode = ModeToday
	res := Layout(items, opts)

	if res.AxisStart != "2025-01-01" || res.AxisEnd != "2025-02-08" {
		t.Errorf("axis = %s..%s, want 2025-01-01..2025-02-08", res.AxisStart, res.AxisEnd)
	}
	if res.TodayX == nil || *res.TodayX != float64(res.Days)/2*24 {
		t.Errorf("today not centered: TodayX = %v, days = %d", res.TodayX, res.Days)
	}
}

func TestLayout_NoItems(t *testing.T) {
	res := Layout(nil, DefaultOptions(day("2025-06-10")))
	if res.AxisStart != "2025-05-26" || res.AxisEnd != "2025-06-25" {
		t.Errorf("axis = %s..%s", res.AxisStart, res.AxisEnd)
	}
	if len(res.Bars) != 0 || res.TodayX == nil {
		t.Errorf("empty layout = %+v", res)
	}
}

func TestLayout_SkipsItemsWithoutStart(t *testing.T) {
	items := []Item{
		{ID: "a"},
		{ID: "b", Start: "06/01/2025"},
		{ID: "c", Start: "2025-06-01"},
	}
	res := Layout(items, DefaultOptions(day("2025-06-10")))
	if len(res.Bars) != 1 || res.Bars[0].Item.ID != "c" {
		t.Errorf("bars = %+v", res.Bars)
	}
	if diff := cmp.Diff([]string{"a", "b"}, res.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
}

func TestLayout_MinBarWidth(t *testing.T) {
	items := []Item{{ID: "a", Start: "2025-06-10", End: "2025-06-01"}}
	res := Layout(items, DefaultOptions(day("2025-06-10")))
	if got := res.Bars[0].Width; got != 2 {
		t.Errorf("width = %g, want 2", got)
	}
}

func TestToneFor(t *testing.T) {
	today := day("2025-06-15")
	tests := []struct {
		end  string
		want Tone
	}{
		{"", ToneUndetermined},
		{"tbd", ToneUndetermined},
		{"2024-12-20", ToneCompleted},
		{"2025-05-31", ToneCompleted},
		{"2025-06-14", ToneCompletedThisMonth},
		{"2025-06-15", ToneInProgress},
		{"2025-07-01", ToneInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.end, func(t *testing.T) {
			res := Layout([]Item{{ID: "x", Start: "2024-12-01", End: tt.end}}, DefaultOptions(today))
			if got := res.Bars[0].Tone; got != tt.want {
				t.Errorf("tone = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLayout_Deterministic(t *testing.T) {
	items := []Item{
		{ID: "a", Start: "2025-03-01", End: "2025-04-15"},
		{ID: "b", Start: "2025-03-20"},
	}
	opts := DefaultOptions(day("2025-04-01"))
	if diff := cmp.Diff(Layout(items, opts), Layout(items, opts)); diff != "" {
		t.Errorf("layout not deterministic:\n%s", diff)
	}
}

func TestFromIssues(t *testing.T) {
	got := FromIssues([]models.Issue{{ID: "iss-1", Title: "t", Start: "2025-01-01", End: "undetermined", Status: "pending"}})
	want := []Item{{ID: "iss-1", Label: "t", Start: "2025-01-01", End: "undetermined", Status: "pending"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromIssues mismatch (-want +got):\n%s", diff)
	}
}

func TestLayout_CenturiesWideAxis(t *testing.T) {
	items := []Item{
		{ID: "a", Start: "1700-01-01", End: "1700-01-10"},
		{ID: "b", Start: "2025-06-01", End: "2025-06-10"},
	}
	opts := DefaultOptions(day("2025-06-15"))
	res := Layout(items, opts)

	if res.Days != 118864 {
		t.Errorf("Days = %d, want 118864", res.Days)
	}
	wantX := 118855 * opts.DayWidth
	if res.Bars[1].X != wantX {
		t.Errorf("bar b X = %v, want %v", res.Bars[1].X, wantX)
	}
	var june GridLine
	for _, gl := range res.MonthLines {
		if gl.Date == "2025-06-01" {
			june = gl
		}
	}
	if june.X != res.Bars[1].X {
		t.Errorf("month line X = %v, bar X = %v; want them aligned", june.X, res.Bars[1].X)
	}
	if res.Width != float64(res.Days+1)*opts.DayWidth {
		t.Errorf("Width = %v for %d days", res.Width, res.Days)
	}
}

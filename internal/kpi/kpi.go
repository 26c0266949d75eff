// Package kpi aggregates project scores into bucket percentages and renders
// projects into display rows.
package kpi

import (
	"fmt"
	"math"
	"sort"

	"github.com/zulandar/kpiboard/internal/models"
	"github.com/zulandar/kpiboard/internal/threshold"
)

// Summary holds the share of projects in each final-score bucket.
// Percentages are rounded independently and need not sum to 100.
type Summary struct {
	Total     int    `json:"total"`
	HighPct   int    `json:"highPct"`
	MediumPct int    `json:"mediumPct"`
	LowPct    int    `json:"lowPct"`
	Counts    Counts `json:"counts"`
}

// Counts holds raw final-score bucket counts.
type Counts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	None   int `json:"none"`
}

// Summarize classifies each project's final score and reports the bucket
// percentages. An empty input yields all zeros.
func Summarize(projects []models.Project, s threshold.Settings) Summary {
	var sum Summary
	sum.Total = len(projects)
	if sum.Total == 0 {
		return sum
	}
	for _, p := range projects {
		switch threshold.Classify(threshold.FinalScore, p.FinalScore, s) {
		case threshold.BucketHigh:
			sum.Counts.High++
		case threshold.BucketMedium:
			sum.Counts.Medium++
		case threshold.BucketLow:
			sum.Counts.Low++
		default:
			sum.Counts.None++
		}
	}
	sum.HighPct = percent(sum.Counts.High, sum.Total)
	sum.MediumPct = percent(sum.Counts.Medium, sum.Total)
	sum.LowPct = percent(sum.Counts.Low, sum.Total)
	return sum
}

func percent(n, total int) int {
	return int(math.Round(float64(n) / float64(total) * 100))
}

// Cell is one rendered metric of a project row.
type Cell struct {
	Field   threshold.Field  `json:"field"`
	Value   float64          `json:"value"`
	Display string           `json:"display"`
	Bucket  threshold.Bucket `json:"bucket"`
	Color   string           `json:"color"`
}

// Row is a project rendered for the grid.
type Row struct {
	ID          string `json:"id"`
	ProjectName string `json:"projectName"`
	Remark      string `json:"remark"`
	Cells       []Cell `json:"cells"`
}

// Cell returns the cell for field, or false when the row has none.
func (r Row) Cell(field threshold.Field) (Cell, bool) {
	for _, c := range r.Cells {
		if c.Field == field {
			return c, true
		}
	}
	return Cell{}, false
}

// RenderRow renders p with one cell per metric field in display order.
func RenderRow(p models.Project, s threshold.Settings) Row {
	row := Row{ID: p.ID, ProjectName: p.ProjectName, Remark: p.Remark}
	for _, f := range threshold.Fields() {
		v, _ := p.Metric(string(f))
		b := threshold.Classify(f, v, s)
		row.Cells = append(row.Cells, Cell{
			Field:   f,
			Value:   v,
			Display: FormatPercent(v),
			Bucket:  b,
			Color:   b.Color(),
		})
	}
	return row
}

// RenderGrid renders every project, preserving order.
func RenderGrid(projects []models.Project, s threshold.Settings) []Row {
	rows := make([]Row, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, RenderRow(p, s))
	}
	return rows
}

// FormatPercent formats a fraction as a percentage with one decimal, e.g.
// 0.95 -> "95.0%".
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// Lowest returns up to n projects with the lowest final score, lowest first.
// Ties keep name order.
func Lowest(projects []models.Project, n int) []models.Project {
	out := append([]models.Project(nil), projects...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore < out[j].FinalScore
		}
		return out[i].ProjectName < out[j].ProjectName
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/kpiboard/internal/kpi"
	"github.com/zulandar/kpiboard/internal/models"
	"github.com/zulandar/kpiboard/internal/threshold"
)

// BuildDigest summarizes the project grid: the bucket split of final scores
// and the lowest scoring projects.
func BuildDigest(projects []models.Project, s threshold.Settings, lowest int, now time.Time) Message {
	sum := kpi.Summarize(projects, s)
	rows := kpi.RenderGrid(kpi.Lowest(projects, lowest), s)

	msg := Message{
		Title: fmt.Sprintf("KPI digest for %s", now.Format(models.DateLayout)),
		Color: digestColor(sum),
		Fields: []Field{
			{Name: "Projects", Value: fmt.Sprintf("%d", sum.Total), Short: true},
			{Name: "High", Value: fmt.Sprintf("%d%%", sum.HighPct), Short: true},
			{Name: "Medium", Value: fmt.Sprintf("%d%%", sum.MediumPct), Short: true},
			{Name: "Low", Value: fmt.Sprintf("%d%%", sum.LowPct), Short: true},
		},
	}
	msg.Text = fmt.Sprintf("%s: %d projects, %d%% high / %d%% medium / %d%% low",
		msg.Title, sum.Total, sum.HighPct, sum.MediumPct, sum.LowPct)

	if len(rows) == 0 {
		msg.Body = "No projects."
		return msg
	}
	var b strings.Builder
	b.WriteString("Lowest final scores:\n")
	for _, r := range rows {
		c, _ := r.Cell(threshold.FinalScore)
		fmt.Fprintf(&b, "• %s: %s", r.ProjectName, c.Display)
		if c.Bucket != threshold.BucketNone {
			fmt.Fprintf(&b, " (%s)", c.Bucket)
		}
		b.WriteByte('\n')
	}
	msg.Body = strings.TrimRight(b.String(), "\n")
	return msg
}

// digestColor picks the color of the most populated bucket, preferring the
// more severe one on ties.
func digestColor(sum kpi.Summary) string {
	switch {
	case sum.Total == 0:
		return threshold.BucketNone.Color()
	case sum.Counts.Low >= sum.Counts.Medium && sum.Counts.Low >= sum.Counts.High:
		return threshold.BucketLow.Color()
	case sum.Counts.Medium >= sum.Counts.High:
		return threshold.BucketMedium.Color()
	default:
		return threshold.BucketHigh.Color()
	}
}

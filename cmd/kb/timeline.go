package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/kpiboard/internal/models"
	"github.com/zulandar/kpiboard/internal/timeline"
)

func newTimelineCmd() *cobra.Command {
	var (
		configPath string
		projectID  string
		mode       string
		today      string
		width      int
	)

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Draw a project's issue timeline",
		Long:  "Lays out a project's issues on a Gantt-style axis. Issues without a start date are listed as skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeline(cmd, configPath, projectID, mode, today, width)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&projectID, "project", "", "project ID (required)")
	cmd.Flags().StringVar(&mode, "mode", string(timeline.ModeData), "axis mode: data or today")
	cmd.Flags().StringVar(&today, "today", "", "reference date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&width, "width", 60, "chart width in characters")
	cmd.MarkFlagRequired("project")
	return cmd
}

func runTimeline(cmd *cobra.Command, configPath, projectID, mode, today string, width int) error {
	opts := timeline.Options{Today: time.Now()}
	switch m := timeline.Mode(mode); m {
	case timeline.ModeData, timeline.ModeToday:
		opts.Mode = m
	default:
		return fmt.Errorf("--mode must be data or today, got %q", mode)
	}
	if today != "" {
		t, err := time.Parse(models.DateLayout, today)
		if err != nil {
			return fmt.Errorf("--today: %w", err)
		}
		opts.Today = t
	}
	if width < 10 {
		return fmt.Errorf("--width must be at least 10")
	}

	cfg, c, err := clientFromConfig(cmd, configPath)
	if err != nil {
		return err
	}
	opts.MinSpanDays = cfg.Timeline.MinSpanDays
	opts.OpenEndDays = cfg.Timeline.OpenEndDays

	issues, err := c.ProjectIssues(cmdContext(cmd), projectID)
	if err != nil {
		return fmt.Errorf("load issues: %w", err)
	}
	drawTimeline(cmd.OutOrStdout(), timeline.Layout(timeline.FromIssues(issues), opts), width)
	return nil
}

// drawTimeline renders res as text, scaling the pixel geometry to width
// columns. Bars with an end date are drawn solid, open-ended bars shaded.
func drawTimeline(w io.Writer, res timeline.Result, width int) {
	fmt.Fprintf(w, "%s .. %s (%d days)\n", res.AxisStart, res.AxisEnd, res.Days)
	if len(res.Bars) == 0 {
		fmt.Fprintln(w, "No scheduled issues.")
	}

	labelWidth := 0
	for _, b := range res.Bars {
		if n := len(b.Item.Label); n > labelWidth {
			labelWidth = n
		}
	}
	col := func(x float64) int {
		if res.Width <= 0 {
			return 0
		}
		return int(math.Round(x / res.Width * float64(width)))
	}

	if res.TodayX != nil && len(res.Bars) > 0 {
		marker := []rune(strings.Repeat(" ", width+1))
		marker[min(col(*res.TodayX), width)] = 'v'
		fmt.Fprintf(w, "%s   %s today\n", pad("", labelWidth), strings.TrimRight(string(marker), " "))
	}

	for _, b := range res.Bars {
		line := []rune(strings.Repeat(" ", width))
		from := min(col(b.X), width-1)
		to := max(col(b.X+b.Width), from+1)
		fill := '#'
		if !b.HasEndDate {
			fill = '-'
		}
		for i := from; i < to && i < width; i++ {
			line[i] = fill
		}
		fmt.Fprintf(w, "%s  |%s|  %s %s..%s\n", pad(b.Item.Label, labelWidth), string(line), b.Tone, b.Start, b.End)
	}

	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped (no start date): %s\n", strings.Join(res.Skipped, ", "))
	}
}

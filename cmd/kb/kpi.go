package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zulandar/kpiboard/internal/kpi"
	"github.com/zulandar/kpiboard/internal/threshold"
	"golang.org/x/term"
)

// columnTitles are the grid headers, in threshold.Fields order.
var columnTitles = map[threshold.Field]string{
	threshold.InlinePassRate:          "INLINE",
	threshold.ElecPassRate:            "ELEC",
	threshold.IssueResponseIndex:      "RESPONSE",
	threshold.WIPAchievementRate:      "WIP",
	threshold.DeadlineAchievementRate: "DEADLINE",
	threshold.FinalScore:              "FINAL",
}

func newKPICmd() *cobra.Command {
	var (
		configPath string
		lowest     int
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:   "kpi",
		Short: "Show the color-coded project KPI grid",
		Long:  "Prints every project's metrics colored by the configured thresholds, followed by the final score distribution.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKPI(cmd, configPath, lowest, noColor)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVar(&lowest, "lowest", 0, "only show the N lowest final scores")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func runKPI(cmd *cobra.Command, configPath string, lowest int, noColor bool) error {
	_, c, err := clientFromConfig(cmd, configPath)
	if err != nil {
		return err
	}
	ctx := cmdContext(cmd)

	projects, err := c.Projects(ctx)
	if err != nil {
		return fmt.Errorf("load projects: %w", err)
	}
	settings, err := c.Thresholds(ctx)
	if err != nil {
		return fmt.Errorf("load thresholds: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects found.")
		return nil
	}

	shown := projects
	if lowest > 0 {
		shown = kpi.Lowest(projects, lowest)
	}
	p := newPalette(!noColor && isTerminal(out))
	printGrid(out, kpi.RenderGrid(shown, settings), p)
	fmt.Fprintln(out)
	printSummary(out, kpi.Summarize(projects, settings), p)
	return nil
}

// palette colors buckets. A disabled palette prints plain text.
type palette struct {
	high, medium, low *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		high:   color.New(color.FgGreen),
		medium: color.New(color.FgYellow),
		low:    color.New(color.FgRed),
	}
	for _, c := range []*color.Color{p.high, p.medium, p.low} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) paint(b threshold.Bucket, s string) string {
	switch b {
	case threshold.BucketHigh:
		return p.high.Sprint(s)
	case threshold.BucketMedium:
		return p.medium.Sprint(s)
	case threshold.BucketLow:
		return p.low.Sprint(s)
	default:
		return s
	}
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printGrid writes rows as aligned columns. Cells are padded before they
// are colored so escape codes do not disturb the alignment.
func printGrid(w io.Writer, rows []kpi.Row, p palette) {
	nameWidth := len("PROJECT")
	for _, r := range rows {
		if n := utf8.RuneCountInString(r.ProjectName); n > nameWidth {
			nameWidth = n
		}
	}

	header := []string{pad("PROJECT", nameWidth)}
	for _, f := range threshold.Fields() {
		header = append(header, pad(columnTitles[f], cellWidth(f)))
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(header, "  "), " "))

	for _, r := range rows {
		line := []string{pad(r.ProjectName, nameWidth)}
		for _, c := range r.Cells {
			line = append(line, p.paint(c.Bucket, pad(c.Display, cellWidth(c.Field))))
		}
		fmt.Fprintln(w, strings.Join(line, "  "))
	}
}

func cellWidth(f threshold.Field) int {
	if n := len(columnTitles[f]); n > len("100.0%") {
		return n
	}
	return len("100.0%")
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func printSummary(w io.Writer, sum kpi.Summary, p palette) {
	fmt.Fprintf(w, "%d projects: %s  %s  %s\n",
		sum.Total,
		p.paint(threshold.BucketHigh, fmt.Sprintf("high %d%%", sum.HighPct)),
		p.paint(threshold.BucketMedium, fmt.Sprintf("medium %d%%", sum.MediumPct)),
		p.paint(threshold.BucketLow, fmt.Sprintf("low %d%%", sum.LowPct)),
	)
}

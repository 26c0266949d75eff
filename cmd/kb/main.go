package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// defaultConfigPath is used when --config is not given.
const defaultConfigPath = "kpiboard.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "kpiboard: project KPI dashboard",
		Long:  "kpiboard tracks project KPIs, color-codes them against configurable thresholds and plans issues on a timeline.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newKPICmd())
	cmd.AddCommand(newIssueCmd())
	cmd.AddCommand(newTimelineCmd())
	cmd.AddCommand(newDigestCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kb %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}

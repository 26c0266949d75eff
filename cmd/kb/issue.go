package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/kpiboard/internal/models"
)

func newIssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue management commands",
	}

	cmd.AddCommand(newIssueListCmd())
	cmd.AddCommand(newIssueAddCmd())
	cmd.AddCommand(newIssueSetCmd())
	return cmd
}

func newIssueListCmd() *cobra.Command {
	var (
		configPath string
		projectID  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := clientFromConfig(cmd, configPath)
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			var issues []models.Issue
			if projectID != "" {
				issues, err = c.ProjectIssues(ctx, projectID)
			} else {
				issues, err = c.Issues(ctx)
			}
			if err != nil {
				return fmt.Errorf("list issues: %w", err)
			}
			printIssues(cmd.OutOrStdout(), issues)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&projectID, "project", "", "only list issues of this project")
	return cmd
}

func printIssues(out io.Writer, issues []models.Issue) {
	if len(issues) == 0 {
		fmt.Fprintln(out, "No issues found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tSTART\tEND\tPROJECT")
	for _, is := range issues {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			is.ID, is.Title, is.Status, orDash(is.Start), orDash(is.End), is.ProjectID)
	}
	w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newIssueAddCmd() *cobra.Command {
	var (
		configPath string
		is         models.Issue
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an issue on a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := clientFromConfig(cmd, configPath)
			if err != nil {
				return err
			}
			created, err := c.CreateIssue(cmdContext(cmd), is)
			if err != nil {
				return fmt.Errorf("create issue: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created issue %s (%s)\n", created.ID, created.Status)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&is.ProjectID, "project", "", "project ID (required)")
	cmd.Flags().StringVar(&is.Title, "title", "", "issue title (required)")
	cmd.Flags().StringVar(&is.Summary, "summary", "", "short summary")
	cmd.Flags().StringVar(&is.Detail, "detail", "", "detailed description")
	cmd.Flags().StringVar(&is.Status, "status", models.StatusPending, "pending, in_progress, completed or blocked")
	cmd.Flags().StringVar(&is.Start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&is.End, "end", "", "end date (YYYY-MM-DD, or empty if undetermined)")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newIssueSetCmd() *cobra.Command {
	var configPath string
	var title, summary, detail, status, start, end string

	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Update fields of an issue",
		Long:  "Updates only the fields whose flags are given; everything else is kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch models.IssuePatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("summary") {
				patch.Summary = &summary
			}
			if flags.Changed("detail") {
				patch.Detail = &detail
			}
			if flags.Changed("status") {
				patch.Status = &status
			}
			if flags.Changed("start") {
				patch.Start = &start
			}
			if flags.Changed("end") {
				patch.End = &end
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to update: pass at least one field flag")
			}

			_, c, err := clientFromConfig(cmd, configPath)
			if err != nil {
				return err
			}
			updated, err := c.UpdateIssue(cmdContext(cmd), args[0], patch)
			if err != nil {
				return fmt.Errorf("update issue: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated issue %s (%s)\n", updated.ID, updated.Status)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&summary, "summary", "", "new summary")
	cmd.Flags().StringVar(&detail, "detail", "", "new description")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&start, "start", "", "new start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "new end date (YYYY-MM-DD)")
	return cmd
}

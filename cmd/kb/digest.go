package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/kpiboard/internal/client"
	"github.com/zulandar/kpiboard/internal/config"
	"github.com/zulandar/kpiboard/internal/notify"
	"github.com/zulandar/kpiboard/internal/notify/discord"
	"github.com/zulandar/kpiboard/internal/notify/slack"
)

func newDigestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "KPI digest commands",
	}
	cmd.AddCommand(newDigestSendCmd())
	return cmd
}

func newDigestSendCmd() *cobra.Command {
	var (
		configPath string
		dryRun     bool
		lowest     int
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send the KPI digest now",
		Long:  "Builds the KPI digest and posts it to the Slack and Discord channels in the digest config section.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigestSend(cmd, configPath, dryRun, lowest)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the digest instead of sending it")
	cmd.Flags().IntVar(&lowest, "lowest", 0, "number of lowest scoring projects to list (default from config)")
	return cmd
}

func runDigestSend(cmd *cobra.Command, configPath string, dryRun bool, lowest int) error {
	cfg, c, err := clientFromConfig(cmd, configPath)
	if err != nil {
		return err
	}
	if lowest <= 0 {
		lowest = cfg.Digest.Lowest
	}
	ctx := cmdContext(cmd)

	if dryRun {
		msg, err := buildDigest(ctx, c, lowest, time.Now())
		if err != nil {
			return err
		}
		printDigest(cmd.OutOrStdout(), msg)
		return nil
	}

	n, err := newNotifier(cfg)
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("no digest destination configured (set digest.slack or digest.discord)")
	}
	if err := sendDigest(ctx, c, n, lowest, time.Now()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Digest sent.")
	return nil
}

// newNotifier builds a notifier for every configured destination. It
// returns nil when none is configured.
func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	var multi notify.Multi
	if sc := cfg.Digest.Slack; sc.BotToken != "" {
		n, err := slack.New(slack.Opts{BotToken: sc.BotToken, ChannelID: sc.ChannelID})
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
	}
	if dc := cfg.Digest.Discord; dc.BotToken != "" {
		n, err := discord.New(discord.Opts{BotToken: dc.BotToken, ChannelID: dc.ChannelID})
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
	}
	switch len(multi) {
	case 0:
		return nil, nil
	case 1:
		return multi[0], nil
	default:
		return multi, nil
	}
}

func buildDigest(ctx context.Context, c *client.Client, lowest int, now time.Time) (notify.Message, error) {
	projects, err := c.Projects(ctx)
	if err != nil {
		return notify.Message{}, fmt.Errorf("load projects: %w", err)
	}
	settings, err := c.Thresholds(ctx)
	if err != nil {
		return notify.Message{}, fmt.Errorf("load thresholds: %w", err)
	}
	return notify.BuildDigest(projects, settings, lowest, now), nil
}

func sendDigest(ctx context.Context, c *client.Client, n notify.Notifier, lowest int, now time.Time) error {
	msg, err := buildDigest(ctx, c, lowest, now)
	if err != nil {
		return err
	}
	return n.Send(ctx, msg)
}

func printDigest(w io.Writer, msg notify.Message) {
	fmt.Fprintln(w, msg.Title)
	for _, f := range msg.Fields {
		fmt.Fprintf(w, "  %s: %s\n", f.Name, f.Value)
	}
	fmt.Fprintln(w, msg.Body)
}

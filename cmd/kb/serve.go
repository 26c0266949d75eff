package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/kpiboard/internal/attachment"
	"github.com/zulandar/kpiboard/internal/client"
	"github.com/zulandar/kpiboard/internal/config"
	"github.com/zulandar/kpiboard/internal/dashboard"
	"github.com/zulandar/kpiboard/internal/db"
	"github.com/zulandar/kpiboard/internal/notify"
	"github.com/zulandar/kpiboard/internal/timeline"
	"github.com/zulandar/kpiboard/internal/uistate"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server",
		Long:  "Serves the KPI dashboard API and event stream, and sends the scheduled KPI digest when a chat destination is configured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(cmd, configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	c := newClient(cfg, gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	sessions, closeSessions, err := newSessions(cfg, c)
	if err != nil {
		return err
	}
	defer closeSessions()

	files, err := newAttachments(ctx, cfg)
	if err != nil {
		return err
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}
	if notifier != nil {
		go func() {
			err := notify.RunSchedule(ctx, cfg.Digest.Cron, func(ctx context.Context) {
				if err := sendDigest(ctx, c, notifier, cfg.Digest.Lowest, time.Now()); err != nil {
					log.Printf("kb: send digest: %v", err)
				}
			})
			if err != nil {
				log.Printf("kb: digest schedule: %v", err)
			}
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "KPI digest scheduled (%s)\n", cfg.Digest.Cron)
	}

	if port <= 0 {
		port = cfg.Server.Port
	}
	return dashboard.Start(ctx, dashboard.StartOpts{
		Client:   c,
		Sessions: sessions,
		Files:    files,
		Timeline: timeline.Options{
			MinSpanDays: cfg.Timeline.MinSpanDays,
			OpenEndDays: cfg.Timeline.OpenEndDays,
			DayWidth:    cfg.Timeline.DayWidth,
		},
		Port:       port,
		Out:        cmd.OutOrStdout(),
		GCInterval: cfg.Cache.GCInterval,
		GCGrace:    cfg.Cache.GCGrace,
	})
}

// newSessions picks the UI session backend: Redis when redis.url is set,
// memory otherwise. The returned func releases the backend.
func newSessions(cfg *config.Config, c *client.Client) (*uistate.Sessions, func(), error) {
	if cfg.Redis.URL == "" {
		return uistate.NewSessions(uistate.NewMemoryBackend(), c.Thresholds), func() {}, nil
	}
	backend, err := uistate.NewRedisBackend(cfg.Redis.URL, cfg.Redis.SessionTTL)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := backend.Close(); err != nil {
			log.Printf("kb: close redis: %v", err)
		}
	}
	return uistate.NewSessions(backend, c.Thresholds), closeFn, nil
}

// newAttachments picks the attachment storage named by attachments.driver.
func newAttachments(ctx context.Context, cfg *config.Config) (*attachment.Service, error) {
	ac := cfg.Attachments
	var storage attachment.Storage
	switch ac.Driver {
	case "minio":
		ms, err := attachment.NewMinioStorage(ctx, attachment.MinioOpts{
			Endpoint:  ac.Endpoint,
			AccessKey: ac.AccessKey,
			SecretKey: ac.SecretKey,
			Bucket:    ac.Bucket,
			UseSSL:    ac.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		storage = ms
	default:
		storage = attachment.NewMemoryStorage()
	}
	return attachment.NewService(storage, ac.MaxSize, ac.PublicURL), nil
}

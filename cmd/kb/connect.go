package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"
	"github.com/zulandar/kpiboard/internal/cache"
	"github.com/zulandar/kpiboard/internal/client"
	"github.com/zulandar/kpiboard/internal/config"
	"github.com/zulandar/kpiboard/internal/db"
	"github.com/zulandar/kpiboard/internal/store"
	"gorm.io/gorm"
)

// addConfigFlag registers the shared --config/-c flag.
func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "path to kpiboard config file")
}

// loadConfig reads the config file. A missing file at the default path
// falls back to built-in defaults; an explicitly named file must exist.
func loadConfig(cmd *cobra.Command, configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("load config: %w", err)
}

// connectFromConfig loads the config and opens its database.
func connectFromConfig(cmd *cobra.Command, configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return nil, nil, err
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}
	return cfg, gormDB, nil
}

// newClient assembles the store, its latency decorator and the query cache
// described by cfg.
func newClient(cfg *config.Config, gormDB *gorm.DB) *client.Client {
	s := store.WithLatency(store.New(gormDB), store.LatencyOpts{
		Base:        cfg.Store.Latency,
		Jitter:      cfg.Store.Jitter,
		FailureRate: cfg.Store.FailureRate,
	})
	c := cache.New(cache.Options{
		StaleTime:    cfg.Cache.StaleTime,
		FetchTimeout: cfg.Cache.FetchTimeout,
	})
	return client.New(c, s, cfg.Thresholds)
}

// clientFromConfig is connectFromConfig followed by newClient.
func clientFromConfig(cmd *cobra.Command, configPath string) (*config.Config, *client.Client, error) {
	cfg, gormDB, err := connectFromConfig(cmd, configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, newClient(cfg, gormDB), nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

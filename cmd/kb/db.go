package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/kpiboard/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBSeedCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the kpiboard database",
		Long:  "Migrates all tables and stores the configured color thresholds.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(cmd, configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedThresholds(gormDB, cfg.Thresholds); err != nil {
		return err
	}
	fmt.Fprintf(out, "Stored thresholds for %d fields\n", len(cfg.Thresholds))
	fmt.Fprintln(out, "kpiboard database initialized successfully.")
	return nil
}

func newDBSeedCmd() *cobra.Command {
	var (
		configPath string
		count      int
		seed       int64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample projects with random metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBSeed(cmd, configPath, count, seed)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of projects to create")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 uses the current time)")
	return cmd
}

func runDBSeed(cmd *cobra.Command, configPath string, count int, seed int64) error {
	if count <= 0 {
		return fmt.Errorf("--count must be positive")
	}
	_, gormDB, err := connectFromConfig(cmd, configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	projects, err := db.SeedProjects(gormDB, count, rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d projects\n", len(projects))
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate all kpiboard tables",
		Long:  "Drops every kpiboard table, migrates again and restores the configured thresholds. All projects and issues are lost.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset without --yes")
			}
			return runDBReset(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm dropping all data")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	cfg, gormDB, err := connectFromConfig(cmd, configPath)
	if err != nil {
		return err
	}
	if err := db.DropAll(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "Dropped all tables")
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if err := db.SeedThresholds(gormDB, cfg.Thresholds); err != nil {
		return err
	}
	fmt.Fprintln(out, "kpiboard database reset.")
	return nil
}

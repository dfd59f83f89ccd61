package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbourn/scan-pipeline/internal/config"
	"github.com/tbourn/scan-pipeline/internal/repo"
)

func newMigrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(*envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runMigrate(cmd, cfg)
		},
	}
}

func runMigrate(cmd *cobra.Command, cfg config.Config) error {
	db, err := repo.OpenSQLite(cfg.DBPath, repo.WithSilentLogger())
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s\n", cfg.DBPath)
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cvewatch/cve-dashboard/internal/config"
	"github.com/cvewatch/cve-dashboard/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(database.Up)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(database.Down)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
}

func runMigrate(dir database.Direction) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := database.Migrate(cfg.DB, dir); err != nil {
		return err
	}
	name := "up"
	if dir == database.Down {
		name = "down"
	}
	fmt.Printf("migrate %s: done\n", name)
	return nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/kuncy7/toolid/pkg/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration commands",
	Long:  `Apply pending migrations or show which ones have been applied.`,
	RunE:  runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	dbManager := cmd.Context().Value("dbManager").(*database.DatabaseManager)
	return dbManager.Init()
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	dbManager := cmd.Context().Value("dbManager").(*database.DatabaseManager)

	runner, err := database.NewMigrationsRunner(dbManager.GetDB())
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}

	statuses, err := runner.Status()
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("Migrations")
	fmt.Println(strings.Repeat("=", 60))

	for _, status := range statuses {
		mark := " "
		if status.Applied {
			mark = "✓"
		}
		fmt.Printf("[%s] %06d %s\n", mark, status.Version, status.Name)
	}

	fmt.Println(strings.Repeat("=", 60) + "\n")
	return nil
}

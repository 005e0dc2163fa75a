package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kuncy7/toolid/pkg/config"
	"github.com/kuncy7/toolid/pkg/database"
	"github.com/spf13/cobra"
)

// skipDatabase marks commands that talk to a remote server instead of the database
const skipDatabase = "skip-database"

var rootCmd = &cobra.Command{
	Use:   "toolid",
	Short: "ToolID - Tool Lending and Scale Management",
	Long: `ToolID tracks a tool inventory, its loans and the net weights
reported by serial scales attached to the host.`,
	PersistentPreRunE: openDatabase,
	SilenceUsage:      true,
}

var dbManager *database.DatabaseManager

func main() {
	settings, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.WithValue(context.Background(), "settings", settings)
	rootCmd.SetContext(ctx)

	err = rootCmd.ExecuteContext(ctx)
	if dbManager != nil {
		dbManager.Close()
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// openDatabase connects to Postgres and stores the manager in the command context
func openDatabase(cmd *cobra.Command, args []string) error {
	if _, skip := cmd.Annotations[skipDatabase]; skip {
		return nil
	}

	settings := settingsFromContext(cmd.Context())

	dm, err := database.NewDatabaseManager(settings.DSN())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	dbManager = dm

	cmd.SetContext(context.WithValue(cmd.Context(), "dbManager", dm))
	return nil
}

func settingsFromContext(ctx context.Context) *config.Settings {
	if settings, ok := ctx.Value("settings").(*config.Settings); ok {
		return settings
	}
	return config.Default()
}

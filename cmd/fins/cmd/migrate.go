package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cathal-killeen/fins/cmd/fins/config"
	"github.com/cathal-killeen/fins/internal/store/postgres"
)

// migrateCmd applies pending database migrations.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	handler := NewCLIErrorHandler()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := requireDatabase(cfg); err != nil {
		return err
	}

	// Connect without auto-migrate so failures report through this
	// command, then apply explicitly.
	dbConfig := *cfg.Database
	dbConfig.MigrateOnStart = false

	st, err := postgres.New(ctx, &dbConfig)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		os.Exit(handler.HandleError(err))
	}

	fmt.Println("Migrations applied.")
	return nil
}

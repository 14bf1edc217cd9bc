package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/G0th1/brandsphere1-sub001/internal/infra/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Run:   runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg == nil {
		return
	}

	ctx := context.Background()
	db, err := postgres.Open(cfg.Database)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		exitFunc(1)
		return
	}
	defer func() {
		_ = db.Close()
	}()

	if err := postgres.Migrate(ctx, db); err != nil {
		slog.Error("Migration failed", "error", err)
		exitFunc(1)
		return
	}

	version, err := postgres.MigrationVersion(ctx, db)
	if err != nil {
		slog.Warn("Could not read migration version", "error", err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "database at migration version %d\n", version)
}

package commands

import (
	"github.com/spf13/cobra"

	"kerno/internal/database"
	"kerno/internal/database/migration"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema unless it exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := database.NewPostgres(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			return migration.EnsureMigrated(ctx, db, cfg.Database.Host)
		},
	}
}

package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"jobpilot/internal/config"
	"jobpilot/internal/database"
	"jobpilot/internal/database/migration"
	dbpostgres "jobpilot/internal/database/postgres"
	"jobpilot/internal/database/seeder"
	"jobpilot/migrations"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		status, _ := cmd.Flags().GetBool("status")
		return withDB(cmd, func(ctx context.Context, cfg config.Config, db database.DB, lg *zap.Logger) error {
			var fsys fs.FS = migrations.FS
			if dir := strings.TrimSpace(cfg.App.MigrationsDir); dir != "" {
				fsys = os.DirFS(dir)
			}
			r := migration.Runner{FS: fsys, Log: lg}
			if !status {
				return r.Run(ctx, db.SQLDB())
			}
			rows, err := r.Status(ctx, db.SQLDB())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
			for _, s := range rows {
				applied := "pending"
				if s.Applied {
					applied = s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, s.Name, applied)
			}
			return w.Flush()
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default user and its starting preferences",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd, func(ctx context.Context, cfg config.Config, db database.DB, lg *zap.Logger) error {
			var id uuid.UUID
			if s := strings.TrimSpace(cfg.App.DefaultUserID); s != "" {
				parsed, err := uuid.Parse(s)
				if err != nil {
					return fmt.Errorf("invalid app.default_user_id %q: %w", s, err)
				}
				id = parsed
			}
			r := seeder.Runner{Seeders: seeder.Defaults(id, cfg.App.DefaultEmail), Log: lg}
			return r.Run(ctx, db)
		})
	},
}

func init() {
	migrateCmd.Flags().Bool("status", false, "list migrations and whether they are applied")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

// withDB opens only the database, for commands that must work before the
// schema exists.
func withDB(cmd *cobra.Command, fn func(ctx context.Context, cfg config.Config, db database.DB, lg *zap.Logger) error) error {
	lg, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database, lg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return fn(ctx, cfg, db, lg)
}

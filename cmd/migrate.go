package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Run: withStore(func(ctx context.Context, st *store.Store, logger *zap.Logger) error {
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		return logVersion(ctx, st, logger)
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration, dropping all data",
	Run: withStore(func(ctx context.Context, st *store.Store, logger *zap.Logger) error {
		if err := st.MigrateDown(ctx); err != nil {
			return err
		}
		logger.Info("schema rolled back")
		return nil
	}),
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Run: withStore(func(ctx context.Context, st *store.Store, logger *zap.Logger) error {
		return logVersion(ctx, st, logger)
	}),
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func logVersion(ctx context.Context, st *store.Store, logger *zap.Logger) error {
	version, dirty, err := st.MigrationVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	logger.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// withStore opens the configured store for one-shot commands.
func withStore(fn func(context.Context, *store.Store, *zap.Logger) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		logger := newLogger()

		cfg, err := getConfig()
		if err != nil {
			logger.Fatal("getting a config", zap.Error(err))
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			logger.Fatal("opening the store", zap.Error(err))
		}
		defer st.Close()

		if err := fn(ctx, st, logger); err != nil {
			logger.Fatal(cmd.CommandPath()+" failed", zap.Error(err))
		}
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load jobs and knowledge base entries from a YAML file",
	Run: withStore(func(ctx context.Context, st *store.Store, logger *zap.Logger) error {
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		return seed(ctx, st, logger)
	}),
}

var (
	seedFile  string
	seedOwner string
)

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "seed.yaml", "yaml file with jobs and knowledge entries")
	seedCmd.Flags().StringVar(&seedOwner, "owner", "", "email of the admin that owns the seeded records")
}

func seed(ctx context.Context, st *store.Store, logger *zap.Logger) error {
	if seedOwner == "" {
		return errors.New("--owner is required")
	}

	owner, err := st.GetUserByEmail(ctx, seedOwner)
	if err != nil {
		return fmt.Errorf("looking up owner %s: %w", seedOwner, err)
	}
	if owner.Role != store.RoleAdmin {
		return fmt.Errorf("owner %s is not an admin", seedOwner)
	}

	f, err := os.Open(seedFile)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := store.DecodeSeed(f)
	if err != nil {
		return err
	}

	res, err := st.ApplySeed(ctx, data, owner.ID)
	if err != nil {
		return err
	}

	logger.Info("seed applied",
		zap.String("file", seedFile),
		zap.Int("jobs", res.Jobs),
		zap.Int("knowledge", res.Knowledge),
	)
	return nil
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openamphion/amphion/pkg/config"
	"github.com/openamphion/amphion/pkg/store"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply entity store migrations",
		Long:  `Opens the configured database and applies any pending schema migrations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			st, err := store.NewSQLiteStore(store.Config{Path: cfg.Database.Path})
			if err != nil {
				return fmt.Errorf("failed to create store: %w", err)
			}
			if err := st.Init(cmd.Context()); err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer func() { _ = st.Close() }()

			if err := st.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to migrate store: %w", err)
			}

			fmt.Printf("Migrations applied to %s\n", cfg.Database.Path)
			return nil
		},
	}
}

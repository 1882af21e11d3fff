package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/symbols/internal/paths"
	"github.com/mesh-intelligence/symbols/pkg/types"
)

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize symstore configuration and storage",
		Long:  "Create the configuration and data directories, then initialize the storage backend.",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.storeConfig()
			if err != nil {
				return err
			}
			// Attach runs migrations; nothing else to do.
			if err := a.withStore(func(types.Store) error { return nil }); err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Symbol store initialized\nconfig: %s\ndata:   %s\n",
				paths.ConfigFile(a.configDir), cfg.DataDir)
			return nil
		},
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the symstore release version.
const Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/symbols"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the symstore version",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "symstore v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}

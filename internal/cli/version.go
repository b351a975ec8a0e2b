package cli

import (
	"cmp"
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build metadata",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Build version: %s\n", cmp.Or(info.Version, "N/A"))
			fmt.Fprintf(cmd.OutOrStdout(), "Build date: %s\n", cmp.Or(info.BuildDate, "N/A"))
		},
	}
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atinyakov/diecompare/internal/feed"
)

// NewExportCommand creates the export command, which prints the dies
// visible with the given passphrase (public only without one).
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the visible dies as a feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, cmd, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func runExport(opts *RootOptions, cmd *cobra.Command, output string) error {
	ctx := cmd.Context()
	log := opts.logger()

	repo, closeRepo, err := opts.openRepository(ctx, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	vs, err := opts.catalog(repo, log).Visible(ctx, opts.auth())
	if err != nil {
		return err
	}
	data, err := feed.Export(vs.Dies)
	if err != nil {
		return err
	}

	if vs.Protected > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d protected entries not exported\n", vs.Protected)
	}
	if vs.Unavailable > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d protected entries unavailable\n", vs.Unavailable)
	}

	if output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	return os.WriteFile(output, data, 0o644)
}

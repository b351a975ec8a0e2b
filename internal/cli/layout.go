package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/atinyakov/diecompare/internal/layout"
)

// NewLayoutCommand creates the layout command, which prints the comparison
// of the given die ids.
func NewLayoutCommand(rootOpts *RootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "layout <id>...",
		Short: "Print the comparison layout of dies",
		Long: `Lay out the given dies as the comparison view would and print the
summary table, largest die first. Ids that are not visible are reported
on stderr and left out.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(rootOpts, cmd, args, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full layout as JSON")
	return cmd
}

func runLayout(opts *RootOptions, cmd *cobra.Command, ids []string, asJSON bool) error {
	ctx := cmd.Context()
	log := opts.logger()

	repo, closeRepo, err := opts.openRepository(ctx, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	res, err := opts.catalog(repo, log).Compare(ctx, opts.auth(), ids)
	if err != nil {
		return err
	}
	if missing := missingIDs(ids, res); len(missing) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "not visible: %s\n", strings.Join(missing, ", "))
	}

	if asJSON {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}
	return printTable(cmd, res)
}

func printTable(cmd *cobra.Command, res layout.Result) error {
	if len(res.Table) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to compare")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCHIP\tMANUFACTURER\tPROCESS\tAREA\tTRANSISTORS\tCOLOR")
	for i, row := range res.Table {
		p := res.Placements[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1, row.ChipName, row.Manufacturer, row.ProcessNode, p.SizeLabel, row.Transistors, p.Color)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "grid %dx%d, canvas %.0fx%.0f\n", res.Columns, res.Rows, res.Width, res.Height)
	return nil
}

func missingIDs(ids []string, res layout.Result) []string {
	shown := make(map[string]struct{}, len(res.Table))
	for _, row := range res.Table {
		shown[row.ID] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := shown[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

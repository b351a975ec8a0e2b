package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/atinyakov/diecompare/internal/feed"
	"github.com/atinyakov/diecompare/internal/models"
)

// NewImportCommand creates the import command, which loads the feeds into
// the SQL store.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import feeds into the database",
		Long: `Load --public and --private into the database given by --dsn.

Dies already present (same chip name and manufacturer, or same id for
sealed entries) are skipped. Plaintext private dies are sealed under the
passphrase before they are stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, cmd)
		},
	}
	return cmd
}

func runImport(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	log := opts.logger()
	client := &http.Client{Timeout: 30 * time.Second}

	var public []models.Die
	var private []models.Record
	skipped := 0
	if src := feed.SourceFor(opts.Public, client); src != nil {
		data, err := src.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("public feed: %w", err)
		}
		dies, n, err := feed.ParseDies(data)
		if err != nil {
			return fmt.Errorf("public feed: %w", err)
		}
		public, skipped = dies, skipped+n
	}
	if src := feed.SourceFor(opts.Private, client); src != nil {
		data, err := src.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("private feed: %w", err)
		}
		recs, n, err := feed.ParsePrivate(data)
		if err != nil {
			return fmt.Errorf("private feed: %w", err)
		}
		private, skipped = recs, skipped+n
	}
	if len(public) == 0 && len(private) == 0 {
		return fmt.Errorf("nothing to import (%d invalid entries)", skipped)
	}

	if needsSealing(public, private) {
		if _, err := opts.requirePassphrase(cmd); err != nil {
			return err
		}
	}

	repo, closeDB, err := opts.openDB()
	if err != nil {
		return err
	}
	defer closeDB()

	added, dup, err := opts.catalog(repo, log).Import(ctx, repo, public, private, opts.Passphrase)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d duplicates, %d invalid\n", len(added), len(dup), skipped)
	return nil
}

func needsSealing(public []models.Die, private []models.Record) bool {
	for _, d := range public {
		if d.Visibility == models.Private {
			return true
		}
	}
	for _, rec := range private {
		if _, ok := rec.Die(); ok {
			return true
		}
	}
	return false
}

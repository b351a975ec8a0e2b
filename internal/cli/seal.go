package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atinyakov/diecompare/internal/feed"
	"github.com/atinyakov/diecompare/internal/models"
	"github.com/atinyakov/diecompare/internal/visibility"
)

// NewSealCommand creates the seal command. It reads a JSON array of
// plaintext dies and prints the private feed of sealed envelopes.
func NewSealCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seal <dies.json>",
		Short: "Encrypt plaintext dies into a private feed",
		Long: `Encrypt every die in a JSON array under the passphrase.

Missing ids are derived from manufacturer, chip name and process node, so
sealing the same file twice yields the same ids. Invalid entries are
skipped and counted on stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeal(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runSeal(opts *RootOptions, cmd *cobra.Command, path string) error {
	data, err := feed.FileSource{Path: path}.Fetch(cmd.Context())
	if err != nil {
		return err
	}
	dies, skipped, err := feed.ParseDies(data)
	if err != nil {
		return err
	}
	passphrase, err := opts.requirePassphrase(cmd)
	if err != nil {
		return err
	}

	sealer := opts.sealer()
	envs := make([]models.Envelope, 0, len(dies))
	for _, d := range dies {
		env, err := visibility.SealDie(sealer, d, passphrase)
		if err != nil {
			return fmt.Errorf("die %q: %w", d.ID, err)
		}
		envs = append(envs, env)
	}

	out, err := json.MarshalIndent(envs, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	if skipped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d invalid entries\n", skipped)
	}
	return nil
}

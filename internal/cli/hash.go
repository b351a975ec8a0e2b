package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/diecompare/internal/service"
)

// NewHashPasswordCommand creates the hash-password command, which prints
// a bcrypt hash suitable for BOOTSTRAP_PASSWORD_HASH.
func NewHashPasswordCommand() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				p, err := promptLine(cmd, "Password: ")
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = p
			}
			if password == "" {
				return errors.New("password must not be empty")
			}

			hash, err := service.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

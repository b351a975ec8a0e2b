package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// promptLine asks for one line on the command's input. Input is echoed,
// so prefer flags or the environment for secrets in scripts.
func promptLine(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no input")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

// requirePassphrase returns the configured passphrase or prompts for one.
func (o *RootOptions) requirePassphrase(cmd *cobra.Command) (string, error) {
	if o.Passphrase != "" {
		return o.Passphrase, nil
	}
	p, err := promptLine(cmd, "Passphrase: ")
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if p == "" {
		return "", errors.New("passphrase must not be empty")
	}
	o.Passphrase = p
	return p, nil
}

package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/atinyakov/diecompare/internal/certgen"
)

// NewCertCommand creates the cert command, which writes a self-signed
// certificate for serving the API with -tls-cert and -tls-key.
func NewCertCommand() *cobra.Command {
	var (
		hosts    []string
		dir      string
		validFor time.Duration
	)

	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Generate a self-signed server certificate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			certPEM, keyPEM, err := certgen.ServerCertificate(hosts, validFor)
			if err != nil {
				return err
			}
			certPath := filepath.Join(dir, "server.crt")
			keyPath := filepath.Join(dir, "server.key")
			if err := certgen.WritePair(certPath, keyPath, certPEM, keyPEM); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", certPath, keyPath)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&hosts, "host", []string{"localhost", "127.0.0.1"}, "DNS names or IPs the certificate is valid for")
	cmd.Flags().StringVarP(&dir, "out", "o", ".", "output directory")
	cmd.Flags().DurationVar(&validFor, "valid-for", 365*24*time.Hour, "certificate lifetime")
	return cmd
}

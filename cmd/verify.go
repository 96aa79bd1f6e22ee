package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/privsep/appsign/internal/image"
	"github.com/privsep/appsign/internal/pki"
)

var verifyCACertFile string

var verifySignedAppCmd = &cobra.Command{
	Use:   "verify-signed-app <signed-bin>",
	Short: "Verify a signed user app against the protected app CA certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := handleVerifySignedApp(cmd, verifyCACertFile, args[0]); err != nil {
			return fmt.Errorf("failed to verify signed app: %w", err)
		}
		return nil
	},
}

func init() {
	verifySignedAppCmd.Flags().StringVar(&verifyCACertFile, "protected-ca-cert", "", "Protected CA certificate file")

	if err := verifySignedAppCmd.MarkFlagRequired("protected-ca-cert"); err != nil {
		panic(err)
	}
}

func handleVerifySignedApp(cmd *cobra.Command, caCertFile, signedFile string) error {
	caCertPEM, err := os.ReadFile(caCertFile)
	if err != nil {
		return fmt.Errorf("%w: read protected CA certificate (%s): %w", pki.ErrIOFailure, caCertFile, err)
	}

	signed, err := os.ReadFile(signedFile)
	if err != nil {
		return fmt.Errorf("%w: read signed app (%s): %w", pki.ErrIOFailure, signedFile, err)
	}

	res, err := image.Verify(signed, caCertPEM)
	if err != nil {
		return err
	}

	cmd.Printf("Signed by: %s\n", res.Certificate.Subject)
	cmd.Printf("✅ Signed app verified (%d bytes of application data)\n", res.DataLen)
	return nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/privsep/appsign/internal/image"
	"github.com/privsep/appsign/internal/pki"
)

var inspectSignedAppCmd = &cobra.Command{
	Use:   "inspect-signed-app <signed-bin>",
	Short: "Print the signature block of a signed user app",
	Long: `Print the fields of the signature sector appended to a signed user app.
No trust decision is made; use verify-signed-app for that.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := handleInspectSignedApp(cmd, args[0]); err != nil {
			return fmt.Errorf("failed to inspect signed app: %w", err)
		}
		return nil
	},
}

func handleInspectSignedApp(cmd *cobra.Command, signedFile string) error {
	signed, err := os.ReadFile(signedFile)
	if err != nil {
		return fmt.Errorf("%w: read signed app (%s): %w", pki.ErrIOFailure, signedFile, err)
	}

	data, block, err := image.SplitSignedImage(signed)
	if err != nil {
		return err
	}

	cmd.Printf("Application data:   %d bytes\n", len(data))
	cmd.Printf("Magic:              0x%02X\n", block.Magic)
	cmd.Printf("Version:            %d\n", block.Version)
	cmd.Printf("Digest:             %x\n", block.Digest)
	cmd.Printf("Certificate length: %d bytes\n", len(block.Certificate))
	cmd.Printf("CRC:                0x%08X\n", block.CRC)

	if err := block.Validate(); err != nil {
		cmd.Printf("Block status:       %v\n", err)
	} else {
		cmd.Printf("Block status:       ok\n")
	}

	cert, err := pki.ParseCertificatePEM(block.CertificatePEM())
	if err != nil {
		cmd.Printf("Certificate:        %v\n", err)
		return nil
	}
	cmd.Printf("Subject:            %s\n", cert.Subject)
	cmd.Printf("Issuer:             %s\n", cert.Issuer)
	cmd.Printf("Valid:              %s - %s\n", cert.NotBefore.UTC().Format("2006-01-02"), cert.NotAfter.UTC().Format("2006-01-02"))
	return nil
}

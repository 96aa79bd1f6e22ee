package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/privsep/appsign/internal/pki"
	"github.com/privsep/appsign/util"
)

var (
	protectedCACertFile string
	protectedCAKeyFile  string
	userCSRFile         string
)

var generateSignedUserAppCertCmd = &cobra.Command{
	Use:   "generate-signed-user-app-cert <user-app-cert>",
	Short: "Generate signed user app certificate using the protected app CA",
	Long: `Issue the user app certificate from its CSR. The certificate is signed with
the protected app CA key and restricted to digital signatures.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := handleGenerateSignedUserAppCert(cmd, protectedCACertFile, protectedCAKeyFile, userCSRFile, args[0]); err != nil {
			return fmt.Errorf("failed to generate user app certificate: %w", err)
		}
		return nil
	},
}

func init() {
	generateSignedUserAppCertCmd.Flags().StringVar(&protectedCACertFile, "protected-ca-cert", "", "Protected CA certificate file")
	generateSignedUserAppCertCmd.Flags().StringVar(&protectedCAKeyFile, "protected-ca-key", "", "Private key of the protected app")
	generateSignedUserAppCertCmd.Flags().StringVar(&userCSRFile, "user-csr", "", "Certificate Signing Request (CSR) of the user app")

	if err := generateSignedUserAppCertCmd.MarkFlagRequired("protected-ca-cert"); err != nil {
		panic(err)
	}
	if err := generateSignedUserAppCertCmd.MarkFlagRequired("protected-ca-key"); err != nil {
		panic(err)
	}
	if err := generateSignedUserAppCertCmd.MarkFlagRequired("user-csr"); err != nil {
		panic(err)
	}
}

func handleGenerateSignedUserAppCert(cmd *cobra.Command, caCertFile, caKeyFile, csrFile, certFile string) error {
	caCertPEM, err := os.ReadFile(caCertFile)
	if err != nil {
		return fmt.Errorf("%w: read protected CA certificate (%s): %w", pki.ErrIOFailure, caCertFile, err)
	}

	caKey, err := pki.ReadPrivateKey(caKeyFile)
	if err != nil {
		return err
	}

	csrPEM, err := os.ReadFile(csrFile)
	if err != nil {
		return fmt.Errorf("%w: read CSR (%s): %w", pki.ErrIOFailure, csrFile, err)
	}

	cert, certPEM, err := pki.IssueLeafCertificate(caCertPEM, caKey, csrPEM)
	if err != nil {
		return err
	}

	if err := util.WriteBytesAtomic(cmd.Context(), certFile, certPEM, certificateFileMode); err != nil {
		return fmt.Errorf("%w: write certificate file (%s): %w", pki.ErrIOFailure, certFile, err)
	}

	cmd.Printf("Subject: %s\n", cert.Subject)
	cmd.Printf("Issuer:  %s\n", cert.Issuer)
	cmd.Printf("✅ Signed user app certificate written to %s\n", certFile)
	return nil
}

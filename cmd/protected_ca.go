package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/privsep/appsign/internal/pki"
	"github.com/privsep/appsign/util"
)

const certificateFileMode = 0o644

var caSubjectFile string

var generateProtectedCACmd = &cobra.Command{
	Use:   "generate-protected-ca <keyfile> <certfile>",
	Short: "Generate protected app private key and certificate based on RSA-3072",
	Long: `Generate the protected app RSA-3072 private key and its self-signed CA
certificate. An existing key file is reused when it holds an RSA-3072 key.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := handleGenerateProtectedCA(cmd, args[0], args[1], caSubjectFile); err != nil {
			return fmt.Errorf("failed to generate protected CA: %w", err)
		}
		return nil
	},
}

func init() {
	generateProtectedCACmd.Flags().StringVar(&caSubjectFile, "subject-file", "", "YAML file with the certificate subject; prompts on stdin when empty")
}

func handleGenerateProtectedCA(cmd *cobra.Command, keyFile, certFile, subjectFile string) error {
	ctx := cmd.Context()

	key, _, err := pki.LoadOrCreateKey(ctx, keyFile)
	if err != nil {
		return err
	}

	provider, err := subjectProvider(cmd, subjectFile)
	if err != nil {
		return err
	}

	log.Info("Generating CA certificate")
	subject, err := pki.CollectSubject(provider)
	if err != nil {
		return err
	}

	cert, certPEM, err := pki.IssueRootCertificate(key, subject)
	if err != nil {
		return err
	}

	if err := util.WriteBytesAtomic(ctx, certFile, certPEM, certificateFileMode); err != nil {
		return fmt.Errorf("%w: write certificate file (%s): %w", pki.ErrIOFailure, certFile, err)
	}

	cmd.Printf("Subject: %s\n", cert.Subject)
	cmd.Printf("✅ Protected app certificate written to %s\n", certFile)
	return nil
}

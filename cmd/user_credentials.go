package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/privsep/appsign/internal/pki"
	"github.com/privsep/appsign/util"
)

const csrFileMode = 0o644

var userSubjectFile string

var generateUserCredentialsCmd = &cobra.Command{
	Use:   "generate-user-credentials <keyfile> <csrfile>",
	Short: "Generate user app private key and CSR based on RSA-3072",
	Long: `Generate the user app RSA-3072 private key and a certificate signing
request to be signed by the protected app CA. An existing key file is reused
when it holds an RSA-3072 key.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := handleGenerateUserCredentials(cmd, args[0], args[1], userSubjectFile); err != nil {
			return fmt.Errorf("failed to generate user credentials: %w", err)
		}
		return nil
	},
}

func init() {
	generateUserCredentialsCmd.Flags().StringVar(&userSubjectFile, "subject-file", "", "YAML file with the CSR subject; prompts on stdin when empty")
}

func handleGenerateUserCredentials(cmd *cobra.Command, keyFile, csrFile, subjectFile string) error {
	ctx := cmd.Context()

	key, _, err := pki.LoadOrCreateKey(ctx, keyFile)
	if err != nil {
		return err
	}

	provider, err := subjectProvider(cmd, subjectFile)
	if err != nil {
		return err
	}

	log.Info("Generating CSR")
	subject, err := pki.CollectSubject(provider)
	if err != nil {
		return err
	}

	_, csrPEM, err := pki.BuildCSR(key, subject)
	if err != nil {
		return err
	}

	if err := util.WriteBytesAtomic(ctx, csrFile, csrPEM, csrFileMode); err != nil {
		return fmt.Errorf("%w: write CSR file (%s): %w", pki.ErrIOFailure, csrFile, err)
	}

	cmd.Printf("✅ User app CSR written to %s\n", csrFile)
	return nil
}

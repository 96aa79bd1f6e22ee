package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/privsep/appsign/internal/image"
)

var (
	userCertFile    string
	userKeyFile     string
	signedImageFile string
)

var signUserAppCmd = &cobra.Command{
	Use:   "sign-user-app <user-app-bin>",
	Short: "Sign the user application and append the signature block at the end",
	Long: `Pad the user app binary to a 4096 byte sector boundary, sign it with the
user app key and append the signature sector holding the digest, the RSA-PSS
signature and the user app certificate.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := image.SignFile(cmd.Context(), args[0], userKeyFile, userCertFile, signedImageFile); err != nil {
			return fmt.Errorf("failed to sign user app: %w", err)
		}
		cmd.Printf("✅ Application signed and signature block appended, written to %s\n", signedImageFile)
		return nil
	},
}

func init() {
	signUserAppCmd.Flags().StringVar(&userCertFile, "user-cert", "", "Signed user app certificate received from protected app CA")
	signUserAppCmd.Flags().StringVar(&userKeyFile, "user-keyfile", "", "User app private key")
	signUserAppCmd.Flags().StringVarP(&signedImageFile, "output", "o", "", "Output file for the signed user app")

	if err := signUserAppCmd.MarkFlagRequired("user-cert"); err != nil {
		panic(err)
	}
	if err := signUserAppCmd.MarkFlagRequired("user-keyfile"); err != nil {
		panic(err)
	}
	if err := signUserAppCmd.MarkFlagRequired("output"); err != nil {
		panic(err)
	}
}

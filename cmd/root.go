package cmd

import (
	"github.com/spf13/cobra"

	"github.com/privsep/appsign/util"
)

var (
	logLevel string
	logFile  string
	rootCmd  = &cobra.Command{
		Use:   "appsign",
		Short: "Trust chain and image signing for protected and user apps",
		Long: `appsign manages the two level trust chain between a protected app and a
user app and signs user app images for secure boot.

The protected app acts as CA: it issues the user app certificate from a CSR.
The user app key then signs the application image, and the certificate is
embedded in the signature sector appended to the image.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			util.SetFlagsFromEnvVars(cmd)
			return util.InitLog(logLevel, logFile)
		},
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "sets appsign log level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", util.LogConsole, "sets appsign log path. If console is specified the log will be output to stderr")

	rootCmd.AddCommand(generateProtectedCACmd)
	rootCmd.AddCommand(generateUserCredentialsCmd)
	rootCmd.AddCommand(generateSignedUserAppCertCmd)
	rootCmd.AddCommand(signUserAppCmd)
	rootCmd.AddCommand(verifySignedAppCmd)
	rootCmd.AddCommand(inspectSignedAppCmd)
	rootCmd.AddCommand(versionCmd)
}

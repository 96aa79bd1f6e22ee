package cmd

import (
	"github.com/spf13/cobra"

	"github.com/privsep/appsign/version"
)

var (
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "prints appsign version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.AppsignVersion())
			cmd.Printf("semver: %s\n", version.Semver())
		},
	}
)

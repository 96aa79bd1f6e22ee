package util

import (
	"os"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to the upper-cased flag name to form the
// environment variable that can set it.
const EnvPrefix = "APPSIGN_"

// SetFlagsFromEnvVars fills flags of cmd that were not given on the command
// line, first from a systemd credential file named after the flag, then from
// the APPSIGN_ prefixed environment variable.
// E.g. --user-cert -> $CREDENTIALS_DIRECTORY/USER_CERT or APPSIGN_USER_CERT
func SetFlagsFromEnvVars(cmd *cobra.Command) {
	credsDir, present := os.LookupEnv("CREDENTIALS_DIRECTORY")

	flags := cmd.Flags()
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}

		name := flagNameToUpper(f.Name)

		if present {
			data, e := os.ReadFile(path.Join(credsDir, name))
			if e == nil {
				err := flags.Set(f.Name, strings.TrimSuffix(string(data), "\n"))
				if err != nil {
					log.Infof("unable to configure flag %s using credential %s, err: %v", f.Name, name, err)
				} else {
					return
				}
			}
		}

		envName := EnvPrefix + name
		if value, varPresent := os.LookupEnv(envName); varPresent {
			if err := flags.Set(f.Name, value); err != nil {
				log.Infof("unable to configure flag %s using variable %s, err: %v", f.Name, envName, err)
			}
		}
	})
}

// flagNameToUpper converts a flag name to its corresponding base env name
// replacing dashes by underscores and making the result uppercase
// E.g. ca-key -> CA_KEY
func flagNameToUpper(cmdFlag string) string {
	return strings.ToUpper(strings.ReplaceAll(cmdFlag, "-", "_"))
}

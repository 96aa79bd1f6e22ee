package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/privsep/appsign/internal/pki"
)

// subjectProvider returns the source of certificate subject attributes: the
// YAML file when given, console prompts otherwise. Prompts re-ask rejected
// values only when stdin is a terminal.
func subjectProvider(cmd *cobra.Command, subjectFile string) (pki.InputProvider, error) {
	if subjectFile != "" {
		p, err := pki.LoadSubjectFile(subjectFile)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	in := cmd.InOrStdin()
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return pki.NewPromptProvider(in, cmd.OutOrStdout(), interactive), nil
}

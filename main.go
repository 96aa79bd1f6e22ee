package main

import (
	"os"

	"github.com/privsep/appsign/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

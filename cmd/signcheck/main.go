/*
Package main is the entry point for the signcheck CLI.

Usage:

	signcheck [command]

Available Commands:

	serve       Run the HTTP assessment service
	predict     Classify a landmark payload from a file or stdin
	init-model  Write a random-weight parameter file for development
	catalog     Inspect lesson catalogs
	progress    Show a learner's progress
*/
package main

import (
	"fmt"
	"os"

	"github.com/ayusman/signcheck/internal/cli"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := cli.NewRootCmd(fmt.Sprintf("%s (commit: %s)", version, commit))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

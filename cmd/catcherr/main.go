// Package main is the entry point for the catcherr binary.
package main

import (
	"os"

	"catcherr/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}

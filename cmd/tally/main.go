// Package main is the single-binary entrypoint for Tally.
package main

import "github.com/tally-app/tally/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}

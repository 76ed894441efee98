// Package main provides the CLI for the QuantDB polyglot query console.
package main

import (
	"os"

	"github.com/leapstack-labs/quantdb/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

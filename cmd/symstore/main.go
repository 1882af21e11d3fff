// Package main provides the symstore CLI.
package main

import (
	"os"

	"github.com/mesh-intelligence/symbols/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

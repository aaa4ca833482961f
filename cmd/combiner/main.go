// Command combiner runs the stream correlation engine described by a
// YAML config document.
package main

import (
	"os"

	"github.com/randalmurphal/combiner/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

// CLI entry point for offline annotation runs.
package main

import (
	"os"

	"github.com/nasher721/note-clarity-sub000/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

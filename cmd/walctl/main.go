// Command walctl is the operator CLI for a sessionwal database: timeline
// inspection, stats, archival, discovery maintenance, and vacuum backups.
package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd := newRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

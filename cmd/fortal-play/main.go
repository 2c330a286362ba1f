// Command fortal-play runs the Fortal Play Stremio addon.
package main

import (
	"fmt"
	"os"
)

// Set via -ldflags "-X main.version=..."
var version = "0.1.0"

func main() {
	cmd, _ := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command credtool computes credential fingerprints and seals documents into
// encrypted envelopes on the holder's machine.
package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err) //nolint:errcheck // best effort
		os.Exit(1)
	}
}

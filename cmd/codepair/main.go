package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codepair-dev/codepair/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌─┐┌┬┐┌─┐┌─┐┌─┐┬┬─┐
  │  │ │ ││├┤ ├─┘├─┤│├┬┘
  └─┘└─┘─┴┘└─┘┴  ┴ ┴┴┴└─
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "codepair",
		Short: "Real-time collaborative code editing relay",
		Long: `Codepair is a websocket relay for collaborative code editing.

Participants join named rooms and the relay fans out everything the
room shares:

  • Code edits with echo-free reconciliation on the client
  • Live cursors and mouse pointers, color-coded per participant
  • Language selection and execution output
  • Initial-state handoff from the room host to late joiners

Rooms live in memory and die with the process.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

// printBanner prints the codepair ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

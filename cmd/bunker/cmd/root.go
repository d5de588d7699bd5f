package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bunker",
	Short: "Room-based screen sharing over WebRTC",
	Long: `bunker-sharescreen coordinates screen-sharing sessions among
participants grouped into named rooms. At most one participant per room
streams at a time; everyone else watches.

Run a signaling server with "bunker serve" and join a room with
"bunker join".`,
}

// Execute runs the CLI.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/emiliancristea/bunker-sharescreen/internal/signaling"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling server",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := servePort
		// PORT env override for cloud deployments.
		if envPort := os.Getenv("PORT"); envPort != "" {
			if p, err := strconv.Atoi(envPort); err == nil {
				port = p
			}
		}

		server := signaling.NewServer()
		return server.StartServer(fmt.Sprintf(":%d", port))
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 3050, "listen port")
	rootCmd.AddCommand(serveCmd)
}

package cmd

import (
	"github.com/nsyszr/smsrelay/pkg/cmd/server"
	"github.com/spf13/cobra"
)

// serveRelayCmd represents the serve relay command
var serveRelayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Serve the relay: device links, operator and inbound HTTP",
	Run:   server.RunServeRelay(c),
}

func init() {
	serveCmd.AddCommand(serveRelayCmd)
}

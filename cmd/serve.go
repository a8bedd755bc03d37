package cmd

import (
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a relay instance",
	Run:   printUsage,
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

package cmd

import (
	"github.com/spf13/cobra"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print device and message status events published by the relay",
	Run:   cmdHandler.Watch.Events,
}

func init() {
	RootCmd.AddCommand(watchCmd)
}

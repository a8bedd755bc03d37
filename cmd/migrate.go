package cmd

import (
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database schema helpers",
	Run:   printUsage,
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}

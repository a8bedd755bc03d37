package cmd

import (
	"github.com/spf13/cobra"
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show or rotate the shared relay token",
	Run:   printUsage,
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current token",
	Run:   cmdHandler.Token.Show,
}

var tokenRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Generate a new token; every previous token stops working",
	Run:   cmdHandler.Token.Rotate,
}

func init() {
	RootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenRotateCmd)
}

package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send commands to the relay over NATS",
	Run:   printUsage,
}

var sendSMSCmd = &cobra.Command{
	Use:   "sms <to> <message>",
	Short: "Relay an SMS and print the outcome",
	Args:  cobra.ExactArgs(2),
	Run:   cmdHandler.Send.SMS,
}

var sendCallCmd = &cobra.Command{
	Use:   "call <to>",
	Short: "Place a voice call and print the outcome",
	Args:  cobra.ExactArgs(1),
	Run:   cmdHandler.Send.Call,
}

func init() {
	RootCmd.AddCommand(sendCmd)
	sendCmd.AddCommand(sendSMSCmd)
	sendCmd.AddCommand(sendCallCmd)

	sendCmd.PersistentFlags().String("message-id", "", "idempotency key of the message")
	sendCmd.PersistentFlags().Duration("timeout", time.Minute, "maximum time to wait for the relay")
	sendSMSCmd.Flags().String("line", "", "preferred line or SIM slot")
}

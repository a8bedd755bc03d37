package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nsyszr/smsrelay/config"
	"github.com/nsyszr/smsrelay/pkg/client"
	"github.com/nsyszr/smsrelay/pkg/client/natsio"
	"github.com/nsyszr/smsrelay/pkg/message"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type SendHandler struct {
	c *config.Config
}

func newSendHandler(c *config.Config) *SendHandler {
	return &SendHandler{c: c}
}

func (h *SendHandler) SMS(cmd *cobra.Command, args []string) {
	line, _ := cmd.Flags().GetString("line")
	messageID, _ := cmd.Flags().GetString("message-id")

	h.run(cmd, func(ctx context.Context, cl client.Interface) (*message.RelayReply, error) {
		return cl.Send(ctx, message.SendRequest{
			To:        args[0],
			Message:   args[1],
			Line:      line,
			MessageID: messageID,
		})
	})
}

func (h *SendHandler) Call(cmd *cobra.Command, args []string) {
	messageID, _ := cmd.Flags().GetString("message-id")

	h.run(cmd, func(ctx context.Context, cl client.Interface) (*message.RelayReply, error) {
		return cl.PlaceCall(ctx, message.CallRequest{
			To:        args[0],
			MessageID: messageID,
		})
	})
}

func (h *SendHandler) run(cmd *cobra.Command, fn func(context.Context, client.Interface) (*message.RelayReply, error)) {
	useColoredOutput()

	if h.c.NATSServerURL == "" {
		log.Error("NATS_URL is not set")
		os.Exit(2)
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = time.Minute
	}

	cl, err := natsio.New(&natsio.Config{URL: h.c.NATSServerURL, Timeout: timeout})
	if err != nil {
		log.Errorf("An error occurred while connecting to NATS: %s", err)
		os.Exit(1)
	}

	code := relayAndReport(cl, fn)
	cl.Close()
	if code != 0 {
		os.Exit(code)
	}
}

// relayAndReport prints the relay reply and returns the process exit code.
func relayAndReport(cl client.Interface, fn func(context.Context, client.Interface) (*message.RelayReply, error)) int {
	rep, err := fn(context.Background(), cl)
	if err != nil {
		log.Errorf("An error occurred while sending: %s", err)
		return 1
	}

	out, _ := json.MarshalIndent(rep, "", "  ")
	fmt.Println(string(out))

	if !rep.OK {
		log.Warnf("Relay failed: %s", rep.Error)
		return 1
	}
	log.Infof("Relayed %s in %d ms", rep.MessageID, rep.ElapsedMs)
	return 0
}

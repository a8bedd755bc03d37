package cli

import (
	"fmt"
	"os"
	"os/signal"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/smsrelay/config"
	"github.com/nsyszr/smsrelay/pkg/message"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type WatchHandler struct {
	c *config.Config
}

func newWatchHandler(c *config.Config) *WatchHandler {
	return &WatchHandler{c: c}
}

// Events prints every device and message status event until interrupted.
func (h *WatchHandler) Events(cmd *cobra.Command, args []string) {
	useColoredOutput()

	if h.c.NATSServerURL == "" {
		log.Error("NATS_URL is not set")
		os.Exit(2)
	}

	nc, err := nats.Connect(h.c.NATSServerURL, nats.Name("smsrelay-watch"))
	if err != nil {
		log.Errorf("An error occurred while connecting to NATS: %s", err)
		os.Exit(1)
	}
	defer nc.Close()

	if _, err := nc.Subscribe(message.SubjectEvents, func(m *nats.Msg) {
		fmt.Printf("subject: %s, message: %s\n", m.Subject, string(m.Data))
	}); err != nil {
		log.Errorf("An error occurred while subscribing: %s", err)
		os.Exit(1)
	}
	log.Infof("Watching %s", message.SubjectEvents)

	quitCh := make(chan os.Signal, 1)
	signal.Notify(quitCh, os.Interrupt)
	<-quitCh
}

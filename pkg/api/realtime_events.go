package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"github.com/nsyszr/smsrelay/pkg/api/resource"
	"github.com/nsyszr/smsrelay/pkg/message"
	log "github.com/sirupsen/logrus"
)

// realtimeEventsHandler streams every published event to a websocket
// client until it disconnects.
func (h *Handler) realtimeEventsHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.nc == nil {
			return errorJSON(c, http.StatusServiceUnavailable, "events are disabled")
		}

		conn, _, _, err := ws.UpgradeHTTP(c.Request(), c.Response())
		if err != nil {
			log.Error("api: failed to upgrade to websocket: ", err)
			return nil
		}
		defer conn.Close()

		out := make(chan []byte, 64)
		sub, err := h.nc.Subscribe(message.SubjectEvents, func(msg *nats.Msg) {
			var data interface{}
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				return
			}
			frame, err := json.Marshal(resource.NewRealtimeEvent(eventTopic(msg.Subject), data))
			if err != nil {
				return
			}
			select {
			case out <- frame:
			default:
				log.Warn("api: realtime event client is too slow, dropping event")
			}
		})
		if err != nil {
			log.Error("api: failed to subscribe events: ", err)
			return nil
		}
		defer sub.Unsubscribe()

		// The reader only exists to notice the client going away.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case frame := <-out:
				if err := wsutil.WriteServerMessage(conn, ws.OpText, frame); err != nil {
					log.Debug("api: failed to send realtime event: ", err)
					return nil
				}
			case <-closed:
				return nil
			}
		}
	}
}

func eventTopic(subject string) string {
	return strings.TrimPrefix(subject, "smsrelay.v1.events.")
}

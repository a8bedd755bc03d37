// Package devicecontrol serves the persistent device links.
package devicecontrol

import (
	"net/http"

	"github.com/gobwas/ws"
	"github.com/labstack/echo/v4"
	"github.com/nsyszr/smsrelay/pkg/authority"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol/controlchannel"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol/controlchannel/websocket"
	log "github.com/sirupsen/logrus"
)

// Handler contains all properties to serve device links
type Handler struct {
	ctrl *controlchannel.Controller
	gate *authority.Gate
}

// NewHandler create a new device link handler
func NewHandler(ctrl *controlchannel.Controller, gate *authority.Gate) *Handler {
	return &Handler{
		ctrl: ctrl,
		gate: gate,
	}
}

// RegisterRoutes attaches the handlers to the echo web server
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	log.Debug("Register devicecontrol routes")
	api := e.Group("/devicecontrol")
	api.Any("/v1", h.controlChannelHandler())
}

func (h *Handler) controlChannelHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		diag := authority.DiagnosticsFromRequest(r, c.RealIP())
		hint := linkHint(r)

		// A token presented with the upgrade is checked before the
		// handshake. Without one the device has to send it in HELLO.
		info := controlchannel.LinkInfo{
			Headers:     r.Header.Clone(),
			Hint:        hint,
			Diagnostics: diag,
			Metadata:    linkMetadata(diag),
		}
		if token := authority.ExtractToken(r); token != "" {
			ok, _ := h.gate.AuthorizeLink(r.Context(), token, r.Header, hint, diag)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			info.Preauthorized = true
		}

		conn, _, _, err := ws.UpgradeHTTP(r, c.Response())
		if err != nil {
			log.Warnf("devicecontrol upgrade from %s failed: %v", diag.RemoteIP, err)
			return nil
		}

		driver := websocket.NewWebSocketDriver(conn)
		driver.Start()
		defer driver.Close()

		cc := h.ctrl.NewControlChannel(driver, info)
		cc.Serve()

		log.Debug("handler exit control channel handler func")
		return nil
	}
}

func linkHint(r *http.Request) string {
	q := r.URL.Query()
	if hint := q.Get("kind"); hint != "" {
		return hint
	}
	return q.Get("client")
}

func linkMetadata(diag authority.Diagnostics) map[string]string {
	meta := map[string]string{}
	if diag.UserAgent != "" {
		meta["user_agent"] = diag.UserAgent
	}
	if diag.RemoteIP != "" {
		meta["remote_ip"] = diag.RemoteIP
	}
	if diag.Origin != "" {
		meta["origin"] = diag.Origin
	}
	return meta
}

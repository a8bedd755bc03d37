// Package api serves the HTTP boundary of the relay: operator commands,
// inbound device submissions, read-back and diagnostics.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"github.com/nsyszr/smsrelay/pkg/authority"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol/registry"
	"github.com/nsyszr/smsrelay/pkg/ingest"
	"github.com/nsyszr/smsrelay/pkg/relay"
	"github.com/nsyszr/smsrelay/pkg/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Relayer is the operator operation set.
type Relayer interface {
	Send(ctx context.Context, to, body, lineHint, messageID string) relay.Result
	PlaceCall(ctx context.Context, to, messageID string) relay.Result
}

// Handler contains all properties to serve the API
type Handler struct {
	gate     *authority.Gate
	relay    Relayer
	ingest   *ingest.Service
	store    storage.Interface
	registry *registry.Registry
	nc       *nats.Conn
}

// NewHandler create a new API handler. nc may be nil, which disables the
// realtime event stream.
func NewHandler(gate *authority.Gate, r Relayer, ing *ingest.Service, store storage.Interface, reg *registry.Registry, nc *nats.Conn) *Handler {
	return &Handler{
		gate:     gate,
		relay:    r,
		ingest:   ing,
		store:    store,
		registry: reg,
		nc:       nc,
	}
}

// RegisterRoutes attaches the handlers to the echo web server
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	log.Debug("Register API routes")

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1", h.requireToken)

	api.POST("/messages", h.handleSendMessage)
	api.GET("/messages/:messageId", h.handleGetMessage)
	api.POST("/calls", h.handlePlaceCall)

	api.POST("/inbound/messages", h.handleInboundMessage)
	api.POST("/inbound/status", h.handleInboundStatus)
	api.POST("/inbound/calls", h.handleInboundCallLog)

	api.GET("/connections", h.handleFetchConnections)

	api.Any("/realtime-events", h.realtimeEventsHandler())
}

type errorResource struct {
	Error string `json:"error"`
}

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, &errorResource{Error: msg})
}

// requireToken rejects requests without a valid token. The reply never
// tells which check failed.
func (h *Handler) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		diag := authority.DiagnosticsFromRequest(r, c.RealIP())
		if !h.gate.AuthorizeRequest(r.Context(), authority.ExtractToken(r), diag) {
			return errorJSON(c, http.StatusUnauthorized, "unauthorized")
		}
		return next(c)
	}
}

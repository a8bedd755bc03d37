package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsyszr/smsrelay/pkg/api/resource"
	"github.com/nsyszr/smsrelay/pkg/relay"
	"github.com/nsyszr/smsrelay/pkg/storage"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) handleSendMessage(c echo.Context) error {
	r := &resource.SendResource{}
	if err := c.Bind(r); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}
	if err := resource.ValidateSend(r); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	res := h.relay.Send(c.Request().Context(), r.To, r.Message, r.Line, r.MessageID)
	return c.JSON(relayStatusCode(res), res)
}

func (h *Handler) handlePlaceCall(c echo.Context) error {
	r := &resource.CallResource{}
	if err := c.Bind(r); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}
	if err := resource.ValidateCall(r); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	res := h.relay.PlaceCall(c.Request().Context(), r.To, r.MessageID)
	return c.JSON(relayStatusCode(res), res)
}

// relayStatusCode maps a relay outcome to an HTTP status. The body always
// carries the full result.
func relayStatusCode(res relay.Result) int {
	if res.OK {
		return http.StatusOK
	}
	switch res.Error {
	case relay.ReasonInvalidRequest:
		return http.StatusBadRequest
	case relay.ReasonNoDevice:
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func (h *Handler) handleGetMessage(c echo.Context) error {
	ctx := c.Request().Context()
	messageID := c.Param("messageId")

	m, err := h.store.Messages().FindByMessageID(ctx, messageID)
	if storage.IsNotFound(err) {
		return errorJSON(c, http.StatusNotFound, "message not found")
	} else if err != nil {
		log.WithError(err).Error("api failed to read message")
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}

	events, err := h.store.StatusEvents().FindByMessageID(ctx, messageID)
	if err != nil {
		log.WithError(err).Error("api failed to read status events")
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, resource.NewMessage(m, events))
}

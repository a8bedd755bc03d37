package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsyszr/smsrelay/pkg/api/resource"
	"github.com/nsyszr/smsrelay/pkg/ingest"
	log "github.com/sirupsen/logrus"
)

// maxInboundBody caps inbound submissions.
const maxInboundBody = 1 << 20

// HeaderEndpointRef names the device an HTTP submission comes from.
const HeaderEndpointRef = "X-Endpoint-Ref"

func (h *Handler) handleInboundMessage(c echo.Context) error {
	raw, err := readBody(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}

	m, err := h.ingest.ReceiveMessage(c.Request().Context(), endpointRef(c), raw)
	if err != nil {
		return ingestError(c, err)
	}

	return c.JSON(http.StatusCreated, resource.NewMessage(m, nil))
}

func (h *Handler) handleInboundStatus(c echo.Context) error {
	raw, err := readBody(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}

	receipt, err := h.ingest.ReceiveStatus(c.Request().Context(), endpointRef(c), raw)
	if err != nil {
		return ingestError(c, err)
	}

	return c.JSON(http.StatusOK, receipt)
}

func (h *Handler) handleInboundCallLog(c echo.Context) error {
	raw, err := readBody(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}

	l, err := h.ingest.ReceiveCallLog(c.Request().Context(), endpointRef(c), raw)
	if err != nil {
		return ingestError(c, err)
	}

	return c.JSON(http.StatusCreated, resource.NewCallLog(l))
}

func readBody(c echo.Context) (json.RawMessage, error) {
	return io.ReadAll(io.LimitReader(c.Request().Body, maxInboundBody))
}

func endpointRef(c echo.Context) string {
	if ref := c.Request().Header.Get(HeaderEndpointRef); ref != "" {
		return ref
	}
	return "http:" + c.RealIP()
}

func ingestError(c echo.Context, err error) error {
	if ingest.IsValidationError(err) {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	log.WithError(err).Error("api failed to ingest submission")
	return errorJSON(c, http.StatusInternalServerError, "internal error")
}

package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsyszr/smsrelay/pkg/api/resource"
)

func (h *Handler) handleFetchConnections(c echo.Context) error {
	return c.JSON(http.StatusOK, resource.NewConnectionList(
		h.registry.Snapshot(), h.registry.Counts(), h.registry.ConnectedSince()))
}

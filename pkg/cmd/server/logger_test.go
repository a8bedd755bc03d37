package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRedactToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/devicecontrol/v1?token=s3cret&kind=device", nil)
	uri := redactToken(req)
	assert.NotContains(t, uri, "s3cret")
	assert.Contains(t, uri, "kind=device")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/connections", nil)
	assert.Equal(t, "/api/v1/connections", redactToken(req))
}

func TestLogger_PassesThrough(t *testing.T) {
	e := echo.New()
	e.Use(logger())
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

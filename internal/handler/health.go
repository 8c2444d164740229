package handler // declare the package name; contains HTTP handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Root answers GET / with the liveness banner the dashboard probes for.
func Root(c echo.Context) error {
	return c.String(http.StatusOK, "zap shifting shifting running!")
}

// Health is a simple health-check endpoint used by load balancers and
// monitoring systems.  It returns a plain text "ok" with status 200.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

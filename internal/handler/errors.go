package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zapshift/parcel-service/internal/payment"
	"github.com/zapshift/parcel-service/internal/repository"
	"github.com/zapshift/parcel-service/internal/service"
)

// respondError maps domain errors to status codes.  Anything unrecognised
// is logged and reported as a 500 with fallback as the message.
func respondError(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, repository.ErrInvalidID):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid parcel id"})
	case errors.Is(err, repository.ErrParcelNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "parcel not found"})
	case errors.Is(err, service.ErrAlreadyPaid):
		return c.JSON(http.StatusConflict, echo.Map{"error": "parcel already paid"})
	case errors.Is(err, payment.ErrInvalidAmount):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cost must be at least one minor currency unit"})
	case errors.Is(err, payment.ErrSessionNotFound):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown checkout session"})
	case errors.Is(err, payment.ErrGateway):
		slog.ErrorContext(c.Request().Context(), "payment gateway call failed", "err", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway error"})
	}
	slog.ErrorContext(c.Request().Context(), fallback, "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": fallback})
}

package handler

import (
	"errors"
	"net/http"

	"license-market/internal/service"

	"github.com/labstack/echo/v4"
)

// httpError translates service errors into echo HTTP errors so handlers stay
// a thin bind-call-respond layer.
func httpError(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidSignature):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid gateway signature")
	case errors.Is(err, service.ErrInsufficientSupply),
		errors.Is(err, service.ErrTokenConflict),
		errors.Is(err, service.ErrInvalidState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return err
	}
}

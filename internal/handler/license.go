package handler

import (
	"net/http"
	"strconv"

	"license-market/internal/dto"
	"license-market/internal/middleware"
	"license-market/internal/service"

	"github.com/labstack/echo/v4"
)

type LicenseHandler struct {
	lifecycle service.LifecycleManager
}

func NewLicenseHandler(lifecycle service.LifecycleManager) *LicenseHandler {
	return &LicenseHandler{lifecycle: lifecycle}
}

func accountIDFromPath(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid license account id")
	}
	return uint(id), nil
}

func (h *LicenseHandler) GetDetail(c echo.Context) error {
	ctx := c.Request().Context()
	requesterID := middleware.RequesterID(c)

	accountID, err := accountIDFromPath(c)
	if err != nil {
		return err
	}

	account, err := h.lifecycle.GetDetail(ctx, requesterID, accountID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewLicenseAccountResponse(account))
}

func (h *LicenseHandler) Activate(c echo.Context) error {
	ctx := c.Request().Context()
	requesterID := middleware.RequesterID(c)

	accountID, err := accountIDFromPath(c)
	if err != nil {
		return err
	}

	account, err := h.lifecycle.Activate(ctx, requesterID, accountID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewLicenseAccountResponse(account))
}

func (h *LicenseHandler) ActivateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	requesterID := middleware.RequesterID(c)

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	activated, err := h.lifecycle.ActivateOrder(ctx, requesterID, uint(orderID))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]int{
		"activated": activated,
	})
}

func (h *LicenseHandler) History(c echo.Context) error {
	ctx := c.Request().Context()
	requesterID := middleware.RequesterID(c)

	accountID, err := accountIDFromPath(c)
	if err != nil {
		return err
	}

	logs, err := h.lifecycle.History(ctx, requesterID, accountID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, logs)
}

package handler

import (
	"net/http"

	"license-market/internal/dto"
	"license-market/internal/middleware"
	"license-market/internal/service"

	"github.com/labstack/echo/v4"
)

type SellerHandler struct {
	staging service.StagingService
}

func NewSellerHandler(staging service.StagingService) *SellerHandler {
	return &SellerHandler{staging: staging}
}

func (h *SellerHandler) StageTokenBatch(c echo.Context) error {
	ctx := c.Request().Context()
	sellerID := middleware.RequesterID(c)

	var req dto.StageBatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	reservation, tokens, err := h.staging.StageTokenBatch(ctx, sellerID, req.PlanID, req.Quantity)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, &dto.StageBatchResponse{
		Handle: reservation.Handle,
		Tokens: tokens,
	})
}

func (h *SellerHandler) CommitTokenBatch(c echo.Context) error {
	ctx := c.Request().Context()
	sellerID := middleware.RequesterID(c)

	if err := h.staging.CommitStagedBatch(ctx, sellerID, c.Param("handle")); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "committed",
	})
}

func (h *SellerHandler) AbandonTokenBatch(c echo.Context) error {
	ctx := c.Request().Context()
	sellerID := middleware.RequesterID(c)

	if err := h.staging.AbandonStagedBatch(ctx, sellerID, c.Param("handle")); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "abandoned",
	})
}

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"license-market/internal/dto"
	"license-market/internal/middleware"
	"license-market/internal/model"
	"license-market/internal/service"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	checkoutService service.CheckoutService
}

func NewPaymentHandler(checkoutService service.CheckoutService) *PaymentHandler {
	return &PaymentHandler{checkoutService: checkoutService}
}

func (h *PaymentHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	buyerID := middleware.RequesterID(c)

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.checkoutService.StartCheckout(ctx, buyerID, c.RealIP(), req.Lines)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) Renew(c echo.Context) error {
	ctx := c.Request().Context()
	requesterID := middleware.RequesterID(c)

	accountID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid license account id")
	}

	var req dto.RenewalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.checkoutService.StartRenewal(ctx, requesterID, c.RealIP(), uint(accountID), req.PlanID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) Subscribe(c echo.Context) error {
	ctx := c.Request().Context()
	sellerID := middleware.RequesterID(c)

	var req dto.SubscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.checkoutService.StartSellerSubscription(ctx, sellerID, c.RealIP(), req.PackageID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// HandleReturn receives the buyer redirected back from the gateway. All query
// parameters go into callback settlement; the page shown depends on the
// outcome, and a provisioning error after a captured payment is reported as
// pending rather than failed because the money already moved.
func (h *PaymentHandler) HandleReturn(c echo.Context) error {
	ctx := c.Request().Context()

	params := map[string]string{}
	for name, values := range c.QueryParams() {
		if len(values) > 0 {
			params[name] = values[0]
		}
	}

	result, err := h.checkoutService.CompleteCallback(ctx, params)
	if errors.Is(err, service.ErrInvalidSignature) {
		return c.String(http.StatusBadRequest, "invalid callback signature")
	}
	if err != nil && result == nil {
		return httpError(err)
	}

	switch {
	case err != nil:
		return c.HTML(http.StatusOK, resultPage("Payment received",
			"Your payment was captured but issuance is still pending. We will finish provisioning shortly."))
	case result.Outcome == model.TxnSuccess:
		return c.HTML(http.StatusOK, resultPage("Payment successful",
			"Your purchase is complete and your licenses are ready."))
	default:
		return c.HTML(http.StatusOK, resultPage("Payment failed", result.Message))
	}
}

func resultPage(title, message string) string {
	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<meta charset="utf-8">
		<title>%s</title>
		<style>
			body {
				font-family: Arial, sans-serif;
				text-align: center;
				margin-top: 80px;
			}
		</style>
	</head>
	<body>
		<h2>%s</h2>
		<p>%s</p>
		<p>Redirecting to homepage in <span id="countdown">10</span> seconds…</p>

		<script>
			let seconds = 10;
			const el = document.getElementById("countdown");

			const timer = setInterval(function () {
				seconds--;
				el.textContent = seconds;

				if (seconds <= 0) {
					clearInterval(timer);
					window.location.href = "/";
				}
			}, 1000);
		</script>
	</body>
	</html>
	`, title, title, message)
}

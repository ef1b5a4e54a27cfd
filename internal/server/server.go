package server

import (
	"license-market/internal/handler"
	appmiddleware "license-market/internal/middleware"
	"license-market/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo           *echo.Echo
	paymentHandler *handler.PaymentHandler
	licenseHandler *handler.LicenseHandler
	sellerHandler  *handler.SellerHandler
}

func NewServer(
	checkoutService service.CheckoutService,
	lifecycle service.LifecycleManager,
	staging service.StagingService,
) *Server {
	e := echo.New()

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:           e,
		paymentHandler: handler.NewPaymentHandler(checkoutService),
		licenseHandler: handler.NewLicenseHandler(lifecycle),
		sellerHandler:  handler.NewSellerHandler(staging),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// The return URL carries the gateway signature, not a requester header.
	api.GET("/payment/return", s.paymentHandler.HandleReturn)

	authed := api.Group("", appmiddleware.RequesterMiddleware())

	authed.POST("/checkout", s.paymentHandler.Checkout)
	authed.POST("/orders/:id/activate", s.licenseHandler.ActivateOrder)

	// -------- licenses --------
	licenses := authed.Group("/licenses")
	licenses.GET("/:id", s.licenseHandler.GetDetail)
	licenses.GET("/:id/history", s.licenseHandler.History)
	licenses.POST("/:id/activate", s.licenseHandler.Activate)
	licenses.POST("/:id/renew", s.paymentHandler.Renew)

	// -------- seller --------
	seller := authed.Group("/seller")
	seller.POST("/subscribe", s.paymentHandler.Subscribe)
	seller.POST("/token-batches", s.sellerHandler.StageTokenBatch)
	seller.POST("/token-batches/:handle/commit", s.sellerHandler.CommitTokenBatch)
	seller.DELETE("/token-batches/:handle", s.sellerHandler.AbandonTokenBatch)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}

package server

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"storefront-backend/internal/handler"
	custommw "storefront-backend/internal/middleware"
	"storefront-backend/internal/service"
)

type Server struct {
	echo           *echo.Echo
	orderHandler   *handler.OrderHandler
	paymentHandler *handler.PaymentHandler
	adminJWTSecret string
}

func NewServer(orderService service.OrderService, paymentService service.PaymentService, adminJWTSecret string) *Server {
	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:           e,
		orderHandler:   handler.NewOrderHandler(orderService, paymentService),
		paymentHandler: handler.NewPaymentHandler(paymentService),
		adminJWTSecret: adminJWTSecret,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- orders --------
	orders := api.Group("/orders")
	orders.POST("", s.orderHandler.CreateOrder)
	orders.GET("/:orderID", s.orderHandler.GetOrder)
	orders.POST("/:orderID/cancel", s.orderHandler.CancelOrder)
	orders.POST("/:orderID/ship", s.orderHandler.ShipOrder)
	orders.GET("/:orderID/events", s.orderHandler.OrderEvents)
	orders.POST("/:orderID/payments", s.orderHandler.InitiatePayment)

	// -------- provider webhooks --------
	payments := s.echo.Group("/payments")
	payments.POST("/webhooks/:provider/callback", s.paymentHandler.ProviderCallback)

	admin := custommw.AdminAuth(s.adminJWTSecret)
	payments.POST("/webhooks/:provider/register", s.paymentHandler.RegisterWebhook, admin)
	payments.DELETE("/webhooks/:provider/:webhookID", s.paymentHandler.DeleteWebhook, admin)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}

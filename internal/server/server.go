package server

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"verbapost/internal/handler"
	"verbapost/internal/middleware"
	"verbapost/internal/service"
)

type Server struct {
	echo               *echo.Echo
	orderHandler       *handler.OrderHandler
	fulfillmentHandler *handler.FulfillmentHandler
	adminToken         string
}

func NewServer(orderService service.OrderService, fulfillmentService service.FulfillmentService, adminToken string, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Error(v.Error))
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	s := &Server{
		echo:               e,
		orderHandler:       handler.NewOrderHandler(orderService),
		fulfillmentHandler: handler.NewFulfillmentHandler(fulfillmentService),
		adminToken:         adminToken,
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
	orders.POST("", s.orderHandler.CreateDraft)
	orders.GET("/return", s.orderHandler.HandleReturn) // checkout redirect return
	orders.GET("/:orderID", s.orderHandler.Get)
	orders.PUT("/:orderID", s.orderHandler.UpdateDraft)
	orders.POST("/:orderID/checkout", s.orderHandler.BeginCheckout)
	orders.POST("/:orderID/recheck", s.orderHandler.RecheckPayment)
	orders.POST("/:orderID/recording", s.orderHandler.SubmitRecording)
	orders.POST("/:orderID/overage", s.orderHandler.AcceptOverage)
	orders.PUT("/:orderID/content", s.orderHandler.UpdateContent)
	orders.POST("/:orderID/polish", s.orderHandler.PolishContent)
	orders.POST("/:orderID/signature", s.orderHandler.AttachSignature)
	orders.POST("/:orderID/approve", s.orderHandler.Approve)
	orders.POST("/:orderID/cancel", s.orderHandler.Cancel)
	orders.GET("/:orderID/document", s.orderHandler.Document)

	// -------- operator queue --------
	admin := api.Group("/admin", middleware.AdminGate(s.adminToken))
	admin.GET("/fulfillment", s.fulfillmentHandler.Pending)
	admin.GET("/fulfillment/:itemID/document", s.fulfillmentHandler.Document)
	admin.POST("/fulfillment/:itemID/sent", s.fulfillmentHandler.MarkSent)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}

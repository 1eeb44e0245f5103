package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lithammer/shortuuid/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"bookings/entity"
	"bookings/gateway"
	"bookings/saga"
)

type Orchestrator interface {
	CreateBooking(ctx context.Context, request saga.CreateBookingRequest) (entity.BookingTransaction, error)
	ProcessPayment(ctx context.Context, bookingID string) (gateway.PaymentIntent, entity.BookingTransaction, error)
	ConfirmPayment(ctx context.Context, bookingID, paymentIntentID string) (entity.BookingTransaction, error)
	ConfirmWithProvider(ctx context.Context, bookingID string, confirmation *gateway.ProviderConfirmation) (entity.BookingTransaction, error)
	CompleteBooking(ctx context.Context, bookingID string) (entity.BookingTransaction, error)
	RollbackTransaction(ctx context.Context, bookingID, reason string) (entity.BookingTransaction, error)
}

type BookingReadModel interface {
	Get(ctx context.Context, bookingID string) (entity.BookingRecord, error)
}

type Server struct {
	addr         string
	e            *echo.Echo
	orchestrator Orchestrator
	bookings     BookingReadModel
}

func NewServer(addr string, orchestrator Orchestrator, bookings BookingReadModel) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))
	e.Use(correlationIDMiddleware)

	server := &Server{
		addr:         addr,
		e:            e,
		orchestrator: orchestrator,
		bookings:     bookings,
	}

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/api/bookings", server.PostBookingAction)
	e.GET("/api/bookings/:booking_id", server.GetBooking)

	return server
}

// Handler exposes the routing tree for in-process tests.
func (s Server) Handler() http.Handler {
	return s.e
}

func (s Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if err := s.e.Shutdown(context.Background()); err != nil {
			logrus.WithError(err).Error("failed to shutdown HTTP server")
		}
	}()

	logrus.WithField("addr", s.addr).Info("[HTTP] server listening")

	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func correlationIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		correlationID := c.Request().Header.Get("Correlation-ID")
		if correlationID == "" {
			correlationID = shortuuid.New()
		}

		c.Response().Header().Set("Correlation-ID", correlationID)
		c.Set("correlation_id", correlationID)

		return next(c)
	}
}

package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"bookings/entity"
	"bookings/gateway"
	"bookings/saga"
)

const (
	actionCreateBooking  = "create_booking"
	actionProcessPayment = "process_payment"
	actionConfirmBooking = "confirm_booking"
	actionCancelBooking  = "cancel_booking"
)

type bookingActionRequest struct {
	Action               string                        `json:"action"`
	BookingID            string                        `json:"booking_id"`
	BookingData          map[string]any                `json:"booking_data"`
	PaymentIntentID      string                        `json:"payment_intent_id"`
	ProviderConfirmation *gateway.ProviderConfirmation `json:"provider_confirmation"`
	Reason               string                        `json:"reason"`
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PostBookingAction dispatches the action field to one saga operation and
// wraps the result in the uniform envelope: 200 on success, 400 for
// validation failures caught before the orchestrator runs, 500 otherwise.
func (s Server) PostBookingAction(c echo.Context) error {
	var request bookingActionRequest
	if err := c.Bind(&request); err != nil {
		return failure(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
	}

	ctx := c.Request().Context()

	switch request.Action {
	case actionCreateBooking:
		if request.BookingData == nil {
			return failure(c, http.StatusBadRequest, errors.New("booking_data is required"))
		}

		transaction, err := s.orchestrator.CreateBooking(ctx, saga.CreateBookingRequest{
			TotalAmount: amountFrom(request.BookingData),
			Currency:    currencyFrom(request.BookingData),
			BookingData: request.BookingData,
		})
		if err != nil {
			return operationFailure(c, err)
		}

		return success(c, map[string]any{
			"booking_id":  transaction.BookingID,
			"transaction": transaction,
		})

	case actionProcessPayment:
		if request.BookingID == "" {
			return failure(c, http.StatusBadRequest, errors.New("booking_id is required"))
		}

		intent, transaction, err := s.orchestrator.ProcessPayment(ctx, request.BookingID)
		if err != nil {
			return operationFailure(c, err)
		}

		return success(c, map[string]any{
			"payment_intent": intent,
			"transaction":    transaction,
		})

	case actionConfirmBooking:
		if request.BookingID == "" {
			return failure(c, http.StatusBadRequest, errors.New("booking_id is required"))
		}

		transaction, err := s.confirmBooking(c, request)
		if err != nil {
			return operationFailure(c, err)
		}

		return success(c, map[string]any{"transaction": transaction})

	case actionCancelBooking:
		if request.BookingID == "" {
			return failure(c, http.StatusBadRequest, errors.New("booking_id is required"))
		}

		reason := request.Reason
		if reason == "" {
			reason = "cancelled by caller"
		}

		transaction, err := s.orchestrator.RollbackTransaction(ctx, request.BookingID, reason)
		if err != nil {
			return operationFailure(c, err)
		}

		return success(c, map[string]any{"transaction": transaction})

	default:
		return failure(c, http.StatusBadRequest, fmt.Errorf("unknown action %q", request.Action))
	}
}

// confirmBooking drives the confirmation half of the saga as one request:
// verify the payment capture, confirm with the inventory provider, finalize.
func (s Server) confirmBooking(c echo.Context, request bookingActionRequest) (entity.BookingTransaction, error) {
	ctx := c.Request().Context()

	if request.PaymentIntentID != "" {
		if _, err := s.orchestrator.ConfirmPayment(ctx, request.BookingID, request.PaymentIntentID); err != nil {
			return entity.BookingTransaction{}, err
		}
	}

	if _, err := s.orchestrator.ConfirmWithProvider(ctx, request.BookingID, request.ProviderConfirmation); err != nil {
		return entity.BookingTransaction{}, err
	}

	return s.orchestrator.CompleteBooking(ctx, request.BookingID)
}

func (s Server) GetBooking(c echo.Context) error {
	record, err := s.bookings.Get(c.Request().Context(), c.Param("booking_id"))
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return failure(c, http.StatusNotFound, err)
		}
		return failure(c, http.StatusInternalServerError, err)
	}

	return success(c, record)
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func failure(c echo.Context, code int, err error) error {
	return c.JSON(code, envelope{Success: false, Error: err.Error()})
}

func operationFailure(c echo.Context, err error) error {
	if errors.Is(err, entity.ErrValidation) {
		return failure(c, http.StatusBadRequest, err)
	}

	logrus.WithField("correlation_id", c.Get("correlation_id")).WithError(err).Error("booking action failed")

	return failure(c, http.StatusInternalServerError, err)
}

// amountFrom tolerates both the dashboard's {"amount": 500} shape and the
// explicit {"total_amount": 500}. JSON numbers arrive as float64.
func amountFrom(bookingData map[string]any) int64 {
	for _, key := range []string{"total_amount", "amount"} {
		if raw, ok := bookingData[key]; ok {
			if amount, ok := raw.(float64); ok {
				return int64(amount)
			}
		}
	}
	return 0
}

func currencyFrom(bookingData map[string]any) string {
	if raw, ok := bookingData["currency"]; ok {
		if currency, ok := raw.(string); ok {
			return currency
		}
	}
	return ""
}
